// Simulated relay outlet. Connects to the powercycle broker, obeys power
// commands and reports its state once a second, the way a real smart outlet
// would.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

func main() {
	// App will run until cancelled by user (e.g. ctrl-c)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deviceName := envOr("OUTLET_NAME", "light")
	brokerURL := envOr("OUTLET_BROKER_URL", "mqtt://localhost:1883")

	u, err := url.Parse(brokerURL)
	if err != nil {
		panic(err)
	}

	commandTopic := "devices/" + deviceName + "/command"
	stateTopic := "devices/" + deviceName + "/state"

	var powerOn atomic.Bool

	cliCfg := autopaho.ClientConfig{
		ConnectUsername:               envOr("OUTLET_USERNAME", "outlet"),
		ConnectPassword:               []byte(envOr("OUTLET_PASSWORD", "outlet")),
		ServerUrls:                    []*url.URL{u},
		KeepAlive:                     20, // Keepalive message should be sent every 20 seconds
		CleanStartOnInitialConnection: false,
		// Keep the session for a minute so a retained command is not lost
		// across a short disconnect.
		SessionExpiryInterval: 60,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			fmt.Println("mqtt connection up")
			// Subscribing in the OnConnectionUp callback is recommended (ensures the
			// subscription is reestablished if the connection drops)
			if _, err := cm.Subscribe(context.Background(), &paho.Subscribe{
				Subscriptions: []paho.SubscribeOptions{
					{Topic: commandTopic, QoS: 1},
				},
			}); err != nil {
				fmt.Printf("failed to subscribe (%s). This is likely to mean no messages will be received.", err)
			}
			fmt.Println("mqtt subscription made")
		},
		OnConnectError: func(err error) {
			fmt.Printf("error whilst attempting connection: %s\n", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: deviceName,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					if pr.Packet.Topic != commandTopic || len(pr.Packet.Payload) == 0 {
						return true, nil
					}
					on := pr.Packet.Payload[0] == 1
					powerOn.Store(on)
					log.Println("power command received:", on)
					return true, nil
				}},
			OnClientError: func(err error) { fmt.Printf("client error: %s\n", err) },
			OnServerDisconnect: func(d *paho.Disconnect) {
				if d.Properties != nil {
					fmt.Printf("server requested disconnect: %s\n", d.Properties.ReasonString)
				} else {
					fmt.Printf("server requested disconnect; reason code: %d\n", d.ReasonCode)
				}
			},
		},
	}

	c, err := autopaho.NewConnection(ctx, cliCfg) // starts process; will reconnect until context cancelled
	if err != nil {
		panic(err)
	}
	if err = c.AwaitConnection(ctx); err != nil {
		panic(err)
	}

	state := make(map[string]string)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if powerOn.Load() {
				state["power"] = "ON"
				state["voltage"] = strconv.Itoa(rand.Intn(20) + 220)
				state["current"] = strconv.Itoa(rand.Intn(5) + 1)
			} else {
				state["power"] = "OFF"
				state["voltage"] = "0"
				state["current"] = "0"
			}

			payload, err := json.Marshal(state)
			if err != nil {
				log.Println("Failed to convert state", state, "to string")
				continue
			}

			if _, err = c.Publish(ctx, &paho.Publish{
				QoS:     1,
				Topic:   stateTopic,
				Payload: payload,
			}); err != nil {
				if ctx.Err() == nil {
					continue
				}
			}

			log.Println("published state:", state)

		case <-ctx.Done():
			return
		}
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
