package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"matchbook/internal/common"
	matchNet "matchbook/internal/net"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	// 1. CLI Parameter Parsing
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the exchange server")
	owner := flag.String("owner", "", "Owner username (compulsory)")
	action := flag.String("action", "place", "Action to perform: ['place', 'depth']")

	// Order Parameters
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "limit", "Order type: 'limit' or 'market'")
	priceStr := flag.String("price", "100.00", "Limit price")
	tickStr := flag.String("tick", "0.01", "Tick size of the instrument")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50)")

	// Depth Parameters
	levels := flag.Uint("levels", 10, "Number of levels per side, 0 for all")

	flag.Parse()

	// Validation
	if *owner == "" {
		fmt.Println("Error: -owner is compulsory.")
		flag.Usage()
		os.Exit(1)
	}
	tick, err := decimal.NewFromString(*tickStr)
	if err != nil {
		log.Fatal().Err(err).Str("tick", *tickStr).Msg("invalid tick size")
	}

	// Connect to Server
	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatal().Err(err).Str("server", *serverAddr).Msg("failed to connect to server")
	}
	defer conn.Close()
	fmt.Printf("Connected to %s as '%s'\n", *serverAddr, *owner)

	// Start Listening for Reports (Async)
	go readReports(conn, tick)

	side := common.Buy
	if strings.ToLower(*sideStr) == "sell" {
		side = common.Sell
	}

	orderType := common.LimitOrder
	if strings.ToLower(*typeStr) == "market" {
		orderType = common.MarketOrder
	}

	// Execute Action
	switch strings.ToLower(*action) {
	case "place":
		var ticks uint64
		if orderType == common.LimitOrder {
			price, err := decimal.NewFromString(*priceStr)
			if err != nil {
				log.Fatal().Err(err).Str("price", *priceStr).Msg("invalid price")
			}
			if ticks, err = common.PriceToTicks(price, tick); err != nil {
				log.Fatal().Err(err).Msg("invalid price")
			}
		}

		for _, q := range parseQuantities(*qtyStr) {
			msg := matchNet.NewOrderMessage{
				OrderType:  orderType,
				LimitPrice: ticks,
				Quantity:   q,
				Side:       side,
				Username:   *owner,
			}
			if _, err := conn.Write(msg.Encode()); err != nil {
				log.Error().Err(err).Uint64("qty", q).Msg("failed to place order")
				continue
			}
			fmt.Printf("-> Sent %s %s Order: %d @ %s\n", side, orderType, q, *priceStr)
		}

	case "depth":
		if *levels > 0xffff {
			log.Fatal().Uint("levels", *levels).Msg("too many levels")
		}
		msg := matchNet.DepthMessage{Levels: uint16(*levels)}
		if _, err := conn.Write(msg.Encode()); err != nil {
			log.Fatal().Err(err).Msg("failed to send depth request")
		}
		fmt.Println("-> Sent Depth Request")

	default:
		log.Fatal().Str("action", *action).Msg("unknown action")
	}

	// Keep the client alive to receive reports
	fmt.Println("\nListening for reports... (Press Ctrl+C to exit)")
	select {}
}

// parseQuantities splits a comma-separated string into a slice of uint64
func parseQuantities(input string) []uint64 {
	parts := strings.Split(input, ",")
	var result []uint64
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if val, err := strconv.ParseUint(p, 10, 64); err == nil {
			result = append(result, val)
		} else {
			log.Warn().Str("qty", p).Msg("invalid quantity, skipping")
		}
	}
	return result
}

// readReports continuously reads and prints reports from the server
func readReports(conn net.Conn, tick decimal.Decimal) {
	for {
		report, err := matchNet.ReadReport(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Error().Err(err).Msg("connection lost")
			}
			os.Exit(0)
		}

		price := common.TicksToPrice(report.Price, tick)
		switch report.MessageType {
		case matchNet.ErrorReport:
			fmt.Printf("\n[SERVER ERROR] %s\n", report.Err)
		case matchNet.AckReport:
			fmt.Printf("\n[ACK] Order %d %s accepted | Resting: %d\n",
				report.OrderID, report.Side, report.Quantity)
		case matchNet.DepthReport:
			fmt.Printf("[DEPTH] %-4s %s x %d\n", report.Side, price, report.Quantity)
		case matchNet.ExecutionReport:
			fmt.Printf("\n[EXECUTION] Match: %s | Order: %d | Qty: %d | Price: %s | vs: %s\n",
				report.Side, report.OrderID, report.Quantity, price, report.Counterparty)
		}
	}
}
