package config

import (
	"github.com/BurntSushi/toml"
)

// Config структура конфигурации.
type Config struct {
	Logger   LogConf      // Logger - конфигурация регистратора.
	Dispatch DispatchConf // Dispatch - параметры периодической отправки кадров.
	Network  NetworkConf  // Network - сетевые параметры выходов.
	MQTT     MQTTConf     // MQTT - конфигурация MQTT клиента.
}

// LogConf структура конфигурации.
type LogConf struct {
	Level  string `toml:"log-level"` // Level - уровень логирования.
	Format string `toml:"format"`    // Format - text или json.
}

// DispatchConf структура конфигурации диспетчера.
type DispatchConf struct {
	IntervalMs int    `toml:"interval-ms"` // IntervalMs - период отправки кадра, мс.
	Settings   string `toml:"settings"`    // Settings - путь к файлу настроек выхода.
}

// NetworkConf структура конфигурации сети.
type NetworkConf struct {
	BindCIDR string `toml:"bind-cidr"` // BindCIDR - подсеть локального интерфейса для UDP выходов.
}

// MQTTConf структура конфигурации.
type MQTTConf struct {
	Enabled     bool   `toml:"enabled"`      // Enabled - включает управление каналами через MQTT.
	ClientID    string `toml:"clientID"`     // ClientID - имя клиента.
	Host        string `toml:"server"`       // Host - адрес MQTT сервера.
	Port        string `toml:"port"`         // Port - порт MQTT сервера.
	User        string `toml:"user"`         // User - логин для подключения к MQTT серверу.
	Password    string `toml:"password"`     // Password - пароль для подключения к MQTT серверу.
	Qos         byte   `toml:"qos"`          // Qos - качество обслуживания.
	TopicPrefix string `toml:"topic-prefix"` // TopicPrefix - префикс топиков set/state.
}

// NewConfig конструктор.
func NewConfig(path string) (*Config, error) {
	// default values
	cfg := Config{
		Logger: LogConf{Level: "info", Format: "text"},
		Dispatch: DispatchConf{
			IntervalMs: 50,
			Settings:   "configs/settings.toml",
		},
		MQTT: MQTTConf{
			ClientID:    "dmxout",
			Port:        "1883",
			TopicPrefix: "dmxout",
		},
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return &cfg, err
	}
	return &cfg, nil
}
