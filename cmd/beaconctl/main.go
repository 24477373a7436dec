// Command beaconctl is a thin CLI client for beacond, adapted from the
// teacher's cmd/client/client.go: the same flag-driven single-shot action
// model, reworked for BEACON's request/response framing instead of the
// teacher's fire-and-forget order socket.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"

	"beacon/internal/common"
	beaconNet "beacon/internal/net"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "address of the beacond server")
	caller := flag.String("caller", "", "calling account (compulsory)")
	action := flag.String("action", "orders", "action: list_token|deposit|trade|close_order|close_all_orders|withdraw|orders|executed_orders|prices|tokens|token_balances|data")

	tokenHex := flag.String("token", "", "hex-encoded token id")
	sideStr := flag.String("side", "buy", "buy|sell")
	price := flag.String("price", "0", "limit price in payment-token smallest units (0 for market order)")
	amount := flag.String("amount", "0", "amount in the traded token's smallest units")
	timestampNs := flag.Uint64("timestamp", 0, "order timestamp_ns, for close_order")

	flag.Parse()

	if *caller == "" && *action != "prices" && *action != "tokens" && *action != "data" {
		fmt.Fprintln(os.Stderr, "error: -caller is required for this action")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *serverAddr, err)
	}
	defer conn.Close()

	var token common.TokenID
	if *tokenHex != "" {
		raw, err := hex.DecodeString(*tokenHex)
		if err != nil {
			log.Fatalf("invalid -token (expected hex): %v", err)
		}
		token = common.TokenIDFromBytes(raw)
	}
	side := common.Buy
	if *sideStr == "sell" {
		side = common.Sell
	}
	priceAmt, err := common.AmountFromString(*price)
	if err != nil {
		log.Fatalf("invalid -price: %v", err)
	}
	amountAmt, err := common.AmountFromString(*amount)
	if err != nil {
		log.Fatalf("invalid -amount: %v", err)
	}

	var typ beaconNet.MessageType
	var body any
	switch *action {
	case "list_token":
		typ, body = beaconNet.TypeListToken, beaconNet.ListTokenRequest{Caller: *caller, Token: token}
	case "deposit":
		typ, body = beaconNet.TypeDepositLiquidity, beaconNet.DepositLiquidityRequest{Caller: *caller, Token: token}
	case "trade":
		typ, body = beaconNet.TypeTrade, beaconNet.TradeRequest{Caller: *caller, Token: token, Amount: amountAmt, Price: priceAmt, Side: side}
	case "close_order":
		typ, body = beaconNet.TypeCloseOrder, beaconNet.CloseOrderRequest{Caller: *caller, Token: token, Side: side, Amount: amountAmt, Price: priceAmt, TimestampNs: *timestampNs}
	case "close_all_orders":
		typ, body = beaconNet.TypeCloseAllOrders, beaconNet.CloseAllOrdersRequest{Caller: *caller}
	case "withdraw":
		typ, body = beaconNet.TypeWithdraw, beaconNet.WithdrawRequest{Caller: *caller, Token: token}
	case "orders":
		typ, body = beaconNet.TypeOrders, beaconNet.OrdersRequest{Token: token, Side: side}
	case "executed_orders":
		typ, body = beaconNet.TypeExecutedOrders, beaconNet.ExecutedOrdersRequest{Token: token}
	case "prices":
		typ, body = beaconNet.TypePrices, struct{}{}
	case "tokens":
		typ, body = beaconNet.TypeTokens, struct{}{}
	case "token_balances":
		typ, body = beaconNet.TypeTokenBalances, beaconNet.TokenBalancesRequest{Caller: *caller}
	case "data":
		typ, body = beaconNet.TypeData, struct{}{}
	default:
		log.Fatalf("unknown action: %s", *action)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		log.Fatalf("encoding request: %v", err)
	}
	frame := beaconNet.Frame{Type: typ, Body: payload}
	if _, err := conn.Write(frame.Encode()); err != nil {
		log.Fatalf("writing request: %v", err)
	}

	header := make([]byte, beaconNet.HeaderLen)
	if _, err := io.ReadFull(conn, header); err != nil {
		log.Fatalf("reading response header: %v", err)
	}
	_, bodyLen, err := beaconNet.DecodeHeader(header)
	if err != nil {
		log.Fatalf("decoding response header: %v", err)
	}
	respBody := make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(conn, respBody); err != nil {
			log.Fatalf("reading response body: %v", err)
		}
	}

	var resp beaconNet.Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		log.Fatalf("decoding response: %v", err)
	}
	if !resp.OK {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", resp.Kind, resp.Message)
		os.Exit(1)
	}
	pretty, _ := json.MarshalIndent(resp.Data, "", "  ")
	fmt.Println(string(pretty))
}
