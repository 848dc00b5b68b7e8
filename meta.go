package xxdb

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const metaVersion = 1

// Meta is stored as JSON in the reserved region of the first data file. It
// fixes the parameters a database cannot change after creation.
type Meta struct {
	Version        int    `json:"version"`
	PageSize       int    `json:"page_size"`
	Disk           string `json:"disk"`
	PagesPerBlock  uint64 `json:"pages_per_block,omitempty"`
	IndexKeySize   int    `json:"index_key_size"`
	IndexValueSize int    `json:"index_value_size"`
	Comment        string `json:"comment,omitempty"`
}

func metaFromOptions(o *Options) Meta {
	m := Meta{
		Version:        metaVersion,
		PageSize:       o.PageSize,
		Disk:           o.Disk,
		IndexKeySize:   o.Index.KeySize,
		IndexValueSize: o.Index.ValueSize,
		Comment:        o.Comment,
	}
	if kind, _ := o.diskKind(); kind == DiskMultiFile {
		m.PagesPerBlock = o.PagesPerBlock
	}
	return m
}

func decodeMeta(raw []byte) (m Meta, err error) {
	if err = json.Unmarshal(raw, &m); err != nil {
		return m, errors.Wrapf(ErrCorruptMeta, "decode: %v", err)
	}
	if m.Version != metaVersion {
		return m, errors.Wrapf(ErrCorruptMeta, "version %d", m.Version)
	}
	if _, err = ParseDiskKind(m.Disk); err != nil {
		return m, errors.Wrapf(ErrCorruptMeta, "disk %q", m.Disk)
	}
	return m, nil
}

func (m Meta) encode() ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "encode meta")
	}
	return raw, nil
}

// applyTo overrides the creation parameters of o with the stored ones.
func (m Meta) applyTo(o *Options, logger logrus.FieldLogger) {
	warn := func(field string, want, stored interface{}) {
		logger.WithFields(logrus.Fields{
			"option": field,
			"want":   want,
			"stored": stored,
		}).Warn("option differs from stored metadata, using stored value")
	}
	if o.PageSize != m.PageSize {
		warn("page_size", o.PageSize, m.PageSize)
		o.PageSize = m.PageSize
	}
	if o.Disk != m.Disk {
		want, _ := o.diskKind()
		stored, _ := ParseDiskKind(m.Disk)
		if want != stored {
			warn("disk", o.Disk, m.Disk)
		}
		o.Disk = m.Disk
	}
	if stored, _ := ParseDiskKind(m.Disk); stored == DiskMultiFile && o.PagesPerBlock != m.PagesPerBlock {
		warn("pages_per_block", o.PagesPerBlock, m.PagesPerBlock)
		o.PagesPerBlock = m.PagesPerBlock
	}
	if o.Index.KeySize != m.IndexKeySize {
		warn("index.key_size", o.Index.KeySize, m.IndexKeySize)
		o.Index.KeySize = m.IndexKeySize
	}
	if o.Index.ValueSize != m.IndexValueSize {
		warn("index.value_size", o.Index.ValueSize, m.IndexValueSize)
		o.Index.ValueSize = m.IndexValueSize
	}
	o.Comment = m.Comment
}
