package main

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/nyan233/xxdb"
)

func main() {
	// files are created as dbset/quick_start.*
	opts := xxdb.DefaultOptions()
	opts.PageSize = 512
	db, err := xxdb.Open("dbset", "quick_start", opts)
	if err != nil {
		panic(err)
	}
	// every key keeps a bounded list of its newest records
	for i := uint64(0); i < 64; i++ {
		for j := 0; j < 4; j++ {
			err = db.Put(i, []byte(strconv.FormatUint(rand.Uint64(), 10)))
			if err != nil {
				panic(fmt.Errorf("put err:%v", err))
			}
		}
	}
	for i := 0; i < 8; i++ {
		k := rand.Uint64N(64)
		records, found, err := db.Get(k)
		if err != nil {
			panic(fmt.Errorf("get err:%v", err))
		}
		if !found {
			panic(fmt.Errorf("not found :%d", k))
		}
		fmt.Printf("db.Get key=%d, records=%q\n", k, records)
	}
	fmt.Printf("stat: %+v\n", db.Stat())
	// close flushes every dirty page
	err = db.Close()
	if err != nil {
		panic(fmt.Errorf("close err:%v", err))
	}
}
