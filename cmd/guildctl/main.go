// Command guildctl publishes one moderation command to a running bridge and
// waits for its result card. Useful for operating a deployment without a
// platform frontend.
//
//	guildctl -guild Alpha -kind invite -target Steve
//	guildctl -guild Alpha -kind mute -target everyone -duration 1h
//	guildctl -guild Alpha -kind execute -command "/msg Steve hi" -admin
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/guildlink/bridge-app/internal/bridge"
	"github.com/guildlink/bridge-app/internal/messaging"
)

func main() {
	natsURL := flag.String("nats", "", "NATS server URL (default nats://127.0.0.1:4222)")
	guild := flag.String("guild", "", "guild id or display name")
	kind := flag.String("kind", "", "command kind (invite, kick, promote, demote, setrank, mute, unmute, block, unblock, execute)")
	target := flag.String("target", "", "target player, or 'everyone' for mute")
	rank := flag.String("rank", "", "rank for setrank")
	duration := flag.String("duration", "", "mute duration, e.g. 7d")
	reason := flag.String("reason", "", "kick or block reason")
	command := flag.String("command", "", "raw chat line for kind execute")
	requester := flag.String("requester", "guildctl", "requester identity recorded in the audit trail")
	admin := flag.Bool("admin", false, "mark the request admin-issued (required for execute)")
	wait := flag.Duration("wait", 20*time.Second, "how long to wait for the result card")
	flag.Parse()

	if *guild == "" || *kind == "" {
		flag.Usage()
		os.Exit(2)
	}
	if v := os.Getenv("NATS_URL"); v != "" && *natsURL == "" {
		*natsURL = v
	}

	config := messaging.DefaultConfig()
	config.Name = "guildlink-ctl"
	if *natsURL != "" {
		config.URL = *natsURL
	}
	client, err := messaging.Connect(config)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer client.Close()

	req := bridge.CommandRequest{
		RequestID: uuid.NewString(),
		Guild:     *guild,
		Kind:      *kind,
		Target:    *target,
		Rank:      *rank,
		Duration:  *duration,
		Reason:    *reason,
		Requester: *requester,
		Command:   *command,
		Admin:     *admin,
	}

	// Subscribe to the per-request result subject before publishing so the
	// reply cannot race the subscription.
	results := make(chan []byte, 1)
	if err := client.SubscribeCommandResult(req.RequestID, func(data []byte) {
		select {
		case results <- data:
		default:
		}
	}); err != nil {
		log.Fatalf("subscribe result: %v", err)
	}
	defer client.UnsubscribeCommandResult(req.RequestID)

	payload, err := json.Marshal(req)
	if err != nil {
		log.Fatalf("marshal request: %v", err)
	}
	if err := client.Publish(messaging.SubjectCommandReq, payload); err != nil {
		log.Fatalf("publish request: %v", err)
	}

	select {
	case data := <-results:
		var card bridge.CommandResultCard
		if err := json.Unmarshal(data, &card); err != nil {
			fmt.Println(string(data))
			return
		}
		out, _ := json.MarshalIndent(card, "", "  ")
		fmt.Println(string(out))
		if !card.Success {
			os.Exit(1)
		}
	case <-time.After(*wait):
		log.Fatalf("no result within %v (request %s)", *wait, req.RequestID)
	}
}
