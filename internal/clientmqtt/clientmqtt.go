package clientmqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"dmxout/internal/logger"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ClientMQTT структура клиента MQTT.
type ClientMQTT struct {
	ctx       context.Context
	log       logger.Logger
	cfgClient MQTTConf
	client    mqtt.Client
	opts      *mqtt.ClientOptions
	setter    ChannelSetter
}

// NewClient конструктор.
func NewClient(log logger.Logger, cfgClient MQTTConf, setter ChannelSetter) *ClientMQTT {
	return &ClientMQTT{
		ctx:       context.Background(),
		log:       log,
		cfgClient: cfgClient,
		setter:    setter,
	}
}

func (c *ClientMQTT) setTopic() string {
	return c.cfgClient.TopicPrefix + "/set"
}

func (c *ClientMQTT) stateTopic() string {
	return c.cfgClient.TopicPrefix + "/state"
}

func (c *ClientMQTT) logEntry() *logger.Log {
	return c.log.With(logger.Fields{"module": "mqtt"})
}

func (c *ClientMQTT) Start(ctx context.Context) error {
	if c.log.GetLevel() == "debug" {
		mqtt.ERROR = log.New(os.Stdout, "[ERROR] ", 0)
		mqtt.CRITICAL = log.New(os.Stdout, "[CRIT] ", 0)
		mqtt.WARN = log.New(os.Stdout, "[WARN]  ", 0)
	}

	c.ctx = ctx

	c.opts = mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%s", c.cfgClient.Schema, c.cfgClient.Host, c.cfgClient.Port)).
		SetUsername(c.cfgClient.User).
		SetPassword(c.cfgClient.Password).
		SetDefaultPublishHandler(c.messageHandler).
		SetOnConnectHandler(c.connectHandler).
		SetConnectionLostHandler(c.connectLostHandler).
		SetClientID(c.cfgClient.ClientID).
		SetOrderMatters(true).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	c.client = mqtt.NewClient(c.opts)

	token := c.client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return token.Error()
		}
	case <-c.ctx.Done():
		return errors.New("context canceled")
	}

	c.logEntry().Infof("Status: %v", c.client.IsConnected())
	return nil
}

func (c *ClientMQTT) Stop() error {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(500)
	}
	return nil
}

// connectHandler подписывается на топик управления при каждом подключении.
func (c *ClientMQTT) connectHandler(client mqtt.Client) {
	c.logEntry().Info("client connected to server")
	c.sub(client, c.setTopic())
}

func (c *ClientMQTT) connectLostHandler(_ mqtt.Client, err error) {
	c.logEntry().Errorf("server connect lost: %v", err)
}

func (c *ClientMQTT) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	c.logEntry().Debugf("received message: %s from topic: %s", msg.Payload(), msg.Topic())
	if msg.Topic() != c.setTopic() {
		return
	}
	if _, err := c.apply(msg.Payload()); err != nil {
		c.logEntry().Errorf("message could not be applied (%s): %v", msg.Payload(), err)
	}
}

// apply sets every command of payload and returns how many succeeded.
// Invalid commands are skipped.
func (c *ClientMQTT) apply(payload []byte) (int, error) {
	var data Payload
	if err := json.Unmarshal(payload, &data); err != nil {
		return 0, fmt.Errorf("message could not be parsed: %w", err)
	}
	c.logEntry().Debugf("message payload parsed. Result: %v", data)

	var (
		applied  int
		firstErr error
	)
	for _, cmd := range data {
		if err := c.setter.SetChannel(cmd.Channel, cmd.Value); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		applied++
	}
	return applied, firstErr
}

func (c *ClientMQTT) sub(client mqtt.Client, topic string) {
	token := client.Subscribe(topic, c.cfgClient.Qos, nil)
	go func() {
		select {
		case <-c.ctx.Done():
			return
		case <-token.Done():
			if token.Error() != nil {
				c.logEntry().Errorf("topic %s subscription error. %v", topic, token.Error())
				return
			}
		}
		c.logEntry().Debugf("topic %s subscribed", topic)
	}()
}

// PublishChannel publishes a channel change on the state topic. It is meant
// to be registered as a dispatcher observer.
func (c *ClientMQTT) PublishChannel(channel uint32, value uint8) {
	if c.client == nil || !c.client.IsConnected() {
		return
	}
	msg, err := json.Marshal(DMXCommand{Channel: channel, Value: value})
	if err != nil {
		c.logEntry().Errorf("public topic. msg: %v", err)
		return
	}
	topic := c.stateTopic()
	token := c.client.Publish(topic, c.cfgClient.Qos, false, msg)
	go func() {
		select {
		case <-c.ctx.Done():
			return
		case <-token.Done():
			if token.Error() != nil {
				c.logEntry().Errorf("error publish topic %s. %v", topic, token.Error())
			}
		}
	}()
}
