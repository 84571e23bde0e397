package clientmqtt

type MQTTConf struct {
	ClientID    string // ClientID - уникальное имя клиента для брокеров.
	Schema      string // Schema - тип подключения.
	Host        string // Host - адрес MQTT сервера.
	Port        string // Port - порт MQTT сервера.
	User        string // User - логин для подключения к MQTT серверу.
	Password    string // Password - пароль для подключения к MQTT серверу.
	Qos         byte   // Qos - качество обслуживания.
	TopicPrefix string // TopicPrefix - префикс топиков <prefix>/set и <prefix>/state.
}

// ChannelSetter принимает значения каналов из MQTT.
type ChannelSetter interface {
	SetChannel(channel uint32, value uint8) error
}

type DMXCommand struct {
	Channel uint32 // Channel is the channel a command talks to (1-512).
	Value   uint8  // Value is the value a DMX channel can represent (0-255).
}

type Payload []DMXCommand
