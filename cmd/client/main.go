// Command client is a probe for exercising the voice pipeline end to end
// without a browser: it connects to the server, sends a handshake and a
// burst of synthetic speech followed by silence, and prints every frame
// the server sends back.
package main

import (
	"encoding/binary"
	"flag"
	"log"
	"math"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"github.com/samtale/samtale/internal/protocol"
)

const (
	sampleRate = 16000
	chunkMs    = 32 // 512 samples per chunk at 16kHz
)

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	speechMs := flag.Int("speech", 1000, "milliseconds of synthetic speech to send")
	silenceMs := flag.Int("silence", 1200, "milliseconds of trailing silence")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	done := make(chan struct{})
	go readFrames(c, done)

	if err := c.WriteMessage(websocket.BinaryMessage, protocol.Encode(protocol.MsgHandshake, []byte(`{"client":"probe"}`))); err != nil {
		log.Fatal("handshake:", err)
	}

	sendAudio(c, *speechMs, 0.6)
	sendAudio(c, *silenceMs, 0)

	select {
	case <-done:
	case <-interrupt:
		log.Println("interrupt")
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	case <-time.After(30 * time.Second):
		log.Println("timed out waiting for server")
	}
}

// sendAudio streams a tone (or silence when amplitude is zero) in
// real-time sized chunks.
func sendAudio(c *websocket.Conn, durationMs int, amplitude float64) {
	samplesPerChunk := sampleRate * chunkMs / 1000
	chunks := durationMs / chunkMs
	offset := 0

	for i := 0; i < chunks; i++ {
		payload := make([]byte, samplesPerChunk*2)
		for j := 0; j < samplesPerChunk; j++ {
			t := float64(offset+j) / sampleRate
			v := int16(amplitude * 32767 * math.Sin(2*math.Pi*220*t))
			binary.LittleEndian.PutUint16(payload[j*2:], uint16(v))
		}
		offset += samplesPerChunk

		if err := c.WriteMessage(websocket.BinaryMessage, protocol.Encode(protocol.MsgAudioIn, payload)); err != nil {
			log.Fatal("write:", err)
		}
		time.Sleep(time.Duration(chunkMs) * time.Millisecond)
	}
}

// readFrames decodes and prints every server frame until the connection
// closes or the assistant finishes a reply.
func readFrames(c *websocket.Conn, done chan struct{}) {
	defer close(done)

	audioBytes := 0
	for {
		_, frame, err := c.ReadMessage()
		if err != nil {
			log.Println("read:", err)
			return
		}

		msgType, payload, err := protocol.Decode(frame)
		if err != nil {
			log.Println("decode:", err)
			continue
		}

		switch msgType {
		case protocol.MsgAudioOut:
			audioBytes += len(payload)
		default:
			log.Printf("%s: %s", msgType, payload)
		}

		if msgType == protocol.MsgStatus && string(payload) == `{"status":"ready"}` && audioBytes > 0 {
			log.Printf("received %d bytes of synthesized audio", audioBytes)
			return
		}
	}
}
