// Command sdoctl drives a ClientFSM against a live CAN interface for
// one upload or download, the way cmd/sdo_client did in the teacher.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/go-sdo/sdoengine/pkg/can"
	_ "github.com/go-sdo/sdoengine/pkg/can/socketcan"
	"github.com/go-sdo/sdoengine/pkg/od"
	"github.com/go-sdo/sdoengine/pkg/sdo"
)

func main() {
	log.SetLevel(log.InfoLevel)

	iface := flag.String("i", "can0", "CAN interface, e.g. can0, vcan0")
	serverID := flag.Int("s", 0x20, "remote server node-id")
	cobIdTx := flag.Uint("tx", 0x600, "base COB-ID client->server (node-id is added if the low nibble is 0)")
	cobIdRx := flag.Uint("rx", 0x580, "base COB-ID server->client (node-id is added if the low nibble is 0)")
	verb := flag.String("verb", "upload", "upload | download")
	index := flag.String("index", "0x1018", "object index, hex or decimal")
	subIndex := flag.Uint("sub", 0, "object sub-index")
	data := flag.String("data", "", "hex payload for download, e.g. deadbeef")
	timeout := flag.Duration("timeout", sdo.DefaultTimeout*10, "transfer timeout")
	flag.Parse()

	idx, err := strconv.ParseUint(*index, 0, 16)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid index %q: %v\n", *index, err)
		os.Exit(1)
	}

	bus, err := can.NewBus("socketcan", *iface, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not open interface %v: %v\n", *iface, err)
		os.Exit(1)
	}

	dict := od.NewObjectDictionary()
	client := sdo.NewClientFSMWithTimeout(od.NewSdoDictionary(dict), bus, *timeout)
	if err := bus.Subscribe(client); err != nil {
		fmt.Fprintf(os.Stderr, "subscribe failed: %v\n", err)
		os.Exit(1)
	}
	if err := bus.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "connect failed: %v\n", err)
		os.Exit(1)
	}
	defer bus.Disconnect()

	if err := client.AddServer(uint8(*serverID), uint32(*cobIdTx), uint32(*cobIdRx)); err != nil {
		fmt.Fprintf(os.Stderr, "add server failed: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+time.Second)
	defer cancel()

	switch *verb {
	case "upload":
		raw, err := client.Upload(ctx, uint8(*serverID), uint16(idx), uint8(*subIndex))
		if err != nil {
			fmt.Fprintf(os.Stderr, "upload failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hex.EncodeToString(raw))
	case "download":
		payload, err := hex.DecodeString(*data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -data: %v\n", err)
			os.Exit(1)
		}
		if err := client.Download(ctx, uint8(*serverID), uint16(idx), uint8(*subIndex), payload); err != nil {
			fmt.Fprintf(os.Stderr, "download failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("ok")
	default:
		fmt.Fprintf(os.Stderr, "unknown -verb %q, want upload or download\n", *verb)
		os.Exit(1)
	}
}
