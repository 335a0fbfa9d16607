package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/uhyunpark/limitbook/pkg/app/core/market"
	"github.com/uhyunpark/limitbook/pkg/app/core/orderbook"
	"github.com/uhyunpark/limitbook/pkg/app/core/price"
)

// place-order rests one limit order through a running node's REST API.
//
//	place-order -market BTC_USD -side bid -price 22.1 -size 20.5
func main() {
	api := flag.String("api", "http://localhost:8080", "node API base URL")
	pairFlag := flag.String("market", "BTC_USD", "trading pair, e.g. BTC_USD")
	sideFlag := flag.String("side", "bid", "bid|buy or ask|sell")
	priceFlag := flag.String("price", "", "limit price, e.g. 22.1")
	size := flag.Float64("size", 1, "order size in base asset")
	flag.Parse()

	// Step 1: Validate locally so obvious mistakes never reach the node
	pair, err := market.ParseTradingPair(*pairFlag)
	if err != nil {
		fail("market", err)
	}
	side, err := orderbook.ParseSide(*sideFlag)
	if err != nil {
		fail("side", err)
	}
	px, err := price.Parse(*priceFlag)
	if err != nil {
		fail("price", err)
	}

	fmt.Println("Order Details:")
	fmt.Printf("  Market: %s\n", pair)
	fmt.Printf("  Side: %s\n", side)
	fmt.Printf("  Price: %s\n", px)
	fmt.Printf("  Size: %g\n\n", *size)

	// Step 2: Submit
	body, err := json.Marshal(map[string]interface{}{
		"side":  side,
		"price": px.String(),
		"size":  *size,
	})
	if err != nil {
		fail("encode", err)
	}

	url := fmt.Sprintf("%s/api/v1/markets/%s/orders", *api, pair)
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		fail("submit", err)
	}
	defer resp.Body.Close()

	// Step 3: Print the node's answer
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		fail("read response", err)
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, out, "", "  ") == nil {
		out = pretty.Bytes()
	}
	fmt.Printf("POST %s -> %s\n%s\n", url, resp.Status, out)

	if resp.StatusCode != http.StatusCreated {
		os.Exit(1)
	}
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "Error (%s): %v\n", step, err)
	os.Exit(1)
}
