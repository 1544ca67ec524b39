package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"main/internal/model"
	"main/internal/recorder"
	"main/internal/schema"
)

func main() {
	dir := flag.String("dir", "testdata/datad/journal", "Journal directory")
	prefix := flag.String("prefix", "", "Journal file prefix (default: journal)")
	speed := flag.Float64("speed", 0, "Playback speed (1=real-time, 0=no pacing)")
	useRecv := flag.Bool("use-recv-time", false, "Use receive timestamp for pacing")
	noChecksum := flag.Bool("no-checksum", false, "Disable checksum validation")
	maxPayload := flag.Int("max-payload", 0, "Max payload size in bytes (0=unlimited)")
	decode := flag.Bool("decode", false, "Decode known record kinds")
	flag.Parse()

	cfg := recorder.PlaybackConfig{
		Dir:             *dir,
		FilePrefix:      *prefix,
		Speed:           *speed,
		UseRecvTime:     *useRecv,
		DisableChecksum: *noChecksum,
		MaxPayloadSize:  *maxPayload,
	}
	pb, err := recorder.NewPlayback(cfg)
	if err != nil {
		log.Fatalf("playback init failed: %v", err)
	}

	ctx := context.Background()
	var index int
	err = pb.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		index++
		fmt.Printf("%06d seq=%d kind=%s symbol=%d ts_event=%d ts_recv=%d len=%d\n", index, header.Seq, kindName(header.Kind), header.SymbolID, header.TsEvent, header.TsRecv, len(payload))
		if *decode {
			printDecoded(header, payload)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("playback run failed: %v", err)
	}
}

func kindName(k model.RecordKind) string {
	if !k.IsAvailable() {
		return fmt.Sprintf("unknown(%d)", k)
	}
	return k.String()
}

func printDecoded(header schema.EventHeader, payload []byte) {
	switch header.Kind {
	case model.KindTick:
		tick, ok := model.RecordFromBytes[model.Tick](payload)
		if !ok {
			fmt.Println("  decode tick failed")
			return
		}
		fmt.Printf("  tick last=%d open=%d high=%d low=%d vol=%d total_vol=%d bid=%d/%d ask=%d/%d\n",
			tick.Last, tick.Open, tick.High, tick.Low, tick.Volume, tick.TotalVolume,
			tick.Bids[0].Price, tick.Bids[0].Size, tick.Asks[0].Price, tick.Asks[0].Size)
	case model.KindBar:
		bar, ok := model.RecordFromBytes[model.Bar](payload)
		if !ok {
			fmt.Println("  decode bar failed")
			return
		}
		fmt.Printf("  bar period=%s start=%d open=%d high=%d low=%d close=%d vol=%d\n",
			header.Period, bar.StartTsNano, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
	case model.KindOrderQueue:
		queue, ok := model.RecordFromBytes[model.OrderQueue](payload)
		if !ok {
			fmt.Println("  decode ordque failed")
			return
		}
		fmt.Printf("  ordque price=%d side=%d count=%d\n", queue.Price, queue.Side, queue.Count)
	case model.KindOrderDetail:
		detail, ok := model.RecordFromBytes[model.OrderDetail](payload)
		if !ok {
			fmt.Println("  decode orddtl failed")
			return
		}
		fmt.Printf("  orddtl seq=%d price=%d vol=%d side=%d action=%d\n",
			detail.Seq, detail.Price, detail.Volume, detail.Side, detail.Action)
	case model.KindTransaction:
		trans, ok := model.RecordFromBytes[model.Transaction](payload)
		if !ok {
			fmt.Println("  decode trans failed")
			return
		}
		fmt.Printf("  trans seq=%d price=%d vol=%d side=%d flags=%d bid_seq=%d ask_seq=%d\n",
			trans.Seq, trans.Price, trans.Volume, trans.Side, trans.Flags, trans.BidSeq, trans.AskSeq)
	default:
		return
	}
}
