package main

import (
	"encoding/json"
	"math/rand"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/energyhub/internal/config"
	"github.com/ANIKETSHETTY47/energyhub/internal/service"
)

type DSMRMeasurements struct {
	Timestamp                        string  `json:"timestamp"`
	ActiveTariff                     string  `json:"ActiveTariff"`
	ElectricityUsedT1                float64 `json:"ElectricityUsedT1"`
	ElectricityUsedT2                float64 `json:"ElectricityUsedT2"`
	CurrentElectricityUsage          float64 `json:"CurrentElectricityUsage"`
	CurrentElectricityDraw           float64 `json:"CurrentElectricityDraw"`
	InstantaneousActivePowerPositive float64 `json:"InstantaneousActivePowerPositive"`
	InstantaneousActivePowerNegative float64 `json:"InstantaneousActivePowerNegative"`
}

type KamstrupValues struct {
	Timestamp   string  `json:"timestamp"`
	Energy      float64 `json:"energy"`
	Volume      float64 `json:"volume"`
	Temp1       float64 `json:"temp1"`
	Temp2       float64 `json:"temp2"`
	Hourcounter float64 `json:"hourcounter"`
}

func main() {
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	opts := mqtt.NewClientOptions().AddBroker(config.MQTTBroker()).SetClientID("energyhub-simulator")
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	t1, t2 := 4021.0, 3950.0
	energy, volume, hours := 52.0, 1012.0, 70123.0

	for i := 0; i < 100; i++ {
		now := time.Now()
		usage := 0.1 + rand.Float64()
		tariff := "Tariff1"
		if now.Hour() < 7 || now.Hour() >= 23 {
			tariff = "Tariff2"
			t2 += usage / 3600
		} else {
			t1 += usage / 3600
		}
		publish(client, service.TopicDSMR, DSMRMeasurements{
			Timestamp:                        now.Format(time.RFC3339),
			ActiveTariff:                     tariff,
			ElectricityUsedT1:                t1,
			ElectricityUsedT2:                t2,
			CurrentElectricityUsage:          usage,
			CurrentElectricityDraw:           usage,
			InstantaneousActivePowerPositive: usage,
		})

		energy += rand.Float64() * 0.01
		volume += rand.Float64() * 0.1
		hours += 1.0 / 3600
		publish(client, service.TopicKamstrup, KamstrupValues{
			Timestamp:   now.Format(time.RFC3339),
			Energy:      energy,
			Volume:      volume,
			Temp1:       55 + rand.Float64()*10,
			Temp2:       35 + rand.Float64()*5,
			Hourcounter: hours,
		})
		time.Sleep(time.Second)
	}
	log.Info().Msg("simulation done")
}

func publish(client mqtt.Client, topic string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("encode")
		return
	}
	token := client.Publish(topic, 1, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("publish")
	}
}
