package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dmxout/internal/clientmqtt"
	"dmxout/internal/config"
	"dmxout/internal/dispatcher"
	"dmxout/internal/logger"
	"dmxout/internal/output"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "configs/conf.toml", "Path to configuration file")
}

func main() {
	flag.Parse()
	cfg, err := config.NewConfig(configFile)
	if err != nil {
		fmt.Printf("configuration file read error: %v", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Printf("failed to create a logger: %v", err)
		os.Exit(1)
	}

	log.With(logger.Fields{"module": "logger"}).Debug("newLogger created ok")

	settings, err := config.LoadSettings(cfg.Dispatch.Settings)
	if err != nil {
		log.With(logger.Fields{"module": "settings"}).Errorf("%v", err)
		os.Exit(1)
	}

	d := dispatcher.New(log,
		dispatcher.WithInterval(time.Duration(cfg.Dispatch.IntervalMs)*time.Millisecond),
		dispatcher.WithFactory(func(oc output.Config) (output.Output, error) {
			return output.New(oc, log, output.WithLocalNetwork(cfg.Network.BindCIDR))
		}),
	)

	if err = d.LoadSettings(settings); err != nil {
		log.With(logger.Fields{"module": "dispatcher"}).Errorf("output was not loaded: %v", err)
	}
	if err = d.OpenBackend(); err != nil {
		log.With(logger.Fields{"module": "dispatcher"}).Errorf("%v", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	var client *clientmqtt.ClientMQTT
	if cfg.MQTT.Enabled {
		client = clientmqtt.NewClient(log, ConvertConfigClientMQTT(cfg.MQTT), d)
		log.With(logger.Fields{"module": "mqtt"}).Debug("NewClient created ok")
		if err = client.Start(ctx); err != nil {
			log.Error("failed to start MQTT service:", err.Error())
			cancel()
		}
		d.Subscribe(client.PublishChannel)
	}

	d.Start(ctx)

	<-ctx.Done()

	if client != nil {
		if err := client.Stop(); err != nil {
			log.Error("failed to stop MQTT service:", err.Error())
		}
	}

	if err := d.Stop(); err != nil {
		log.Error("failed to stop output:", err.Error())
	}

	d.PersistSettings(settings)
	if err := settings.Save(cfg.Dispatch.Settings); err != nil {
		log.Error("failed to save settings:", err.Error())
	}

	log.Info("shutdown complete")
}

// ConvertConfigClientMQTT преобразует структуры.
func ConvertConfigClientMQTT(cfg config.MQTTConf) clientmqtt.MQTTConf {
	return clientmqtt.MQTTConf{
		ClientID:    cfg.ClientID,
		Schema:      "tcp",
		Host:        cfg.Host,
		Port:        cfg.Port,
		User:        cfg.User,
		Password:    cfg.Password,
		Qos:         cfg.Qos,
		TopicPrefix: cfg.TopicPrefix,
	}
}
