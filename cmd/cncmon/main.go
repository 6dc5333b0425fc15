package main

import (
	"flag"
	"log"
	"os"

	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/cnc.go/pkg/framework"
	"github.com/robotalks/cnc.go/pkg/sim/mqtt"
)

var (
	mqttURL = "mqtt://localhost:1883/cnc/"
)

func init() {
	if val := os.Getenv("CNC_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL, "cncmon")
	if err != nil {
		log.Fatalln(err)
	}

	q.Sub("+/"+mqtt.TopicSignal, mqtt.Handler(func(topic string, payload []byte) {
		var ev mqtt.SignalEvent
		if err := proto.Unmarshal(payload, &ev); err != nil {
			log.Printf("%s: bad event: %v", topic, err)
			return
		}
		log.Printf("%s: %s", topic, ev.String())
	}))
	token := q.Connect()
	if token.Wait(); token.Error() != nil {
		log.Fatalln(token.Error())
	}
	defer q.Close()

	runner := fx.NewRunner().HandleSignals()
	<-runner.Context.Done()
}
