package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/robotalks/sdb.go/pkg/telemetry"
	"github.com/robotalks/sdb.go/pkg/telemetry/mqtt"
)

var (
	mqttURL = "mqtt://localhost:1883/"
	pattern = "sdb/#"
)

func init() {
	if val := os.Getenv("SDB_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&pattern, "topic", pattern, "Topic pattern to monitor.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	q.Sub(pattern, func(topic string, payload []byte) {
		e, err := telemetry.Unmarshal(payload)
		if err != nil {
			log.Printf("%s: bad event: %v", topic, err)
			return
		}
		log.Printf("%s: [%s] %s", topic, e.Time.Format(time.RFC3339), e)
	})
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	<-(chan struct{})(nil)
}
