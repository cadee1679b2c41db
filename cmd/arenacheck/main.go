// Command arenacheck probes a running arena server: readiness, the
// caller's game history and, when a websocket URL is given, the live feed.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-arena/pkg/arenadto"
)

func main() {
	baseURL := strings.TrimRight(os.Getenv("ARENA_BASE_URL"), "/")
	wsURL := os.Getenv("ARENA_WS_URL")
	token := os.Getenv("ARENA_TOKEN")
	cookie := os.Getenv("ARENA_COOKIE")
	playMs := os.Getenv("ARENA_PLAY_MS")

	if baseURL == "" {
		log.Fatal("ARENA_BASE_URL is required")
	}

	headers := func() map[string]string {
		m := map[string]string{}
		if token != "" {
			m["Authorization"] = "Bearer " + token
		}
		if cookie != "" {
			m["Cookie"] = cookie
		}
		return m
	}

	client := &fasthttp.Client{ReadTimeout: 8 * time.Second, WriteTimeout: 8 * time.Second}

	status, body, err := get(client, baseURL+"/health/ready", headers())
	if err != nil {
		log.Printf("/health/ready error: %v", err)
	} else {
		log.Printf("/health/ready %d %s", status, body)
	}

	status, body, err = get(client, baseURL+"/previousGames", headers())
	switch {
	case err != nil:
		log.Printf("/previousGames error: %v", err)
	case status != fasthttp.StatusOK:
		log.Printf("/previousGames %d %s", status, body)
	default:
		var games []arenadto.HistoricalGame
		if err := json.Unmarshal(body, &games); err != nil {
			log.Printf("/previousGames decode error: %v", err)
			break
		}
		log.Printf("/previousGames ok: %d games", len(games))
		for _, g := range games {
			fmt.Printf("  %s %s vs %s winner=%s reason=%s\n", g.ID, g.WhiteUsername, g.BlackUsername, g.Winner, g.Reason)
		}
	}

	if wsURL == "" {
		log.Println("ARENA_WS_URL not set; skipping websocket check")
		return
	}

	hdr := http.Header{}
	for k, v := range headers() {
		hdr.Set(k, v)
	}
	dctx, dcancel := context.WithTimeout(context.Background(), 10*time.Second)
	conn, _, err := websocket.Dial(dctx, wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      hdr,
	})
	dcancel()
	if err != nil {
		log.Printf("websocket dial error: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	// Observe for a short window
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if playMs != "" {
		frame, err := arenadto.Encode(arenadto.EventPlayGame, playMs)
		if err == nil {
			err = conn.Write(ctx, websocket.MessageText, frame)
		}
		if err != nil {
			log.Printf("play_game error: %v", err)
		}
	}

	for {
		var f arenadto.Frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			if ctx.Err() == nil {
				log.Printf("websocket read: %v", err)
			}
			return
		}
		fmt.Printf("event=%s data=%s\n", f.Event, f.Data)
	}
}

func get(c *fasthttp.Client, url string, headers map[string]string) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if err := c.DoTimeout(req, resp, 8*time.Second); err != nil {
		return 0, nil, err
	}
	return resp.StatusCode(), append([]byte(nil), resp.Body()...), nil
}
