package main

import (
	"flag"
	"fmt"
	"log"

	"main/internal/blockfile"
	"main/internal/model"
)

func main() {
	path := flag.String("path", "", "Block file path")
	records := flag.Bool("records", false, "Dump record contents")
	limit := flag.Int("limit", 0, "Max records to dump (0=unlimited)")
	flag.Parse()

	if *path == "" {
		log.Fatalf("path is required")
	}

	header, err := blockfile.ReadHeader(*path)
	if err != nil {
		log.Fatalf("read header failed: %v", err)
	}
	fmt.Printf("kind=%s period=%s symbol=%d count=%d record_size=%d trading_day=%d first_bucket=%d last_bucket=%d\n",
		header.Kind, header.Period, header.SymbolID, header.Count, header.RecordSize,
		header.TradingDay, header.FirstBucket, header.LastBucket)

	if !*records {
		return
	}

	file, err := blockfile.Open(*path)
	if err != nil {
		log.Fatalf("open failed: %v", err)
	}
	defer file.Release()

	if err := printRecords(file, header.Kind, *limit); err != nil {
		log.Fatalf("dump records failed: %v", err)
	}
}

func printRecords(file *blockfile.MappedFile, kind model.RecordKind, limit int) error {
	switch kind {
	case model.KindTick:
		block, err := blockfile.Ticks(file)
		if err != nil {
			return err
		}
		for i := 0; i < capped(block.Len(), limit); i++ {
			tick := block.At(i)
			fmt.Printf("%06d ts=%d last=%d open=%d high=%d low=%d vol=%d total_vol=%d bid=%d/%d ask=%d/%d\n",
				i, tick.EventTsNano, tick.Last, tick.Open, tick.High, tick.Low, tick.Volume, tick.TotalVolume,
				tick.Bids[0].Price, tick.Bids[0].Size, tick.Asks[0].Price, tick.Asks[0].Size)
		}
	case model.KindBar:
		block, err := blockfile.Bars(file)
		if err != nil {
			return err
		}
		for i := 0; i < capped(block.Len(), limit); i++ {
			bar := block.At(i)
			fmt.Printf("%06d start=%d open=%d high=%d low=%d close=%d vol=%d turnover=%d\n",
				i, bar.StartTsNano, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, bar.Turnover)
		}
	case model.KindOrderQueue:
		block, err := blockfile.OrderQueues(file)
		if err != nil {
			return err
		}
		for i := 0; i < capped(block.Len(), limit); i++ {
			queue := block.At(i)
			fmt.Printf("%06d ts=%d price=%d side=%d count=%d\n",
				i, queue.EventTsNano, queue.Price, queue.Side, queue.Count)
		}
	case model.KindOrderDetail:
		block, err := blockfile.OrderDetails(file)
		if err != nil {
			return err
		}
		for i := 0; i < capped(block.Len(), limit); i++ {
			detail := block.At(i)
			fmt.Printf("%06d ts=%d seq=%d price=%d vol=%d side=%d action=%d\n",
				i, detail.EventTsNano, detail.Seq, detail.Price, detail.Volume, detail.Side, detail.Action)
		}
	case model.KindTransaction:
		block, err := blockfile.Transactions(file)
		if err != nil {
			return err
		}
		for i := 0; i < capped(block.Len(), limit); i++ {
			trans := block.At(i)
			fmt.Printf("%06d ts=%d seq=%d price=%d vol=%d side=%d flags=%d bid_seq=%d ask_seq=%d\n",
				i, trans.EventTsNano, trans.Seq, trans.Price, trans.Volume, trans.Side, trans.Flags, trans.BidSeq, trans.AskSeq)
		}
	default:
		return fmt.Errorf("unsupported kind: %d", kind)
	}
	return nil
}

func capped(n, limit int) int {
	if limit > 0 && limit < n {
		return limit
	}
	return n
}
