// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration values.
type Config struct {
	// Sensor
	SensorDriver     string `yaml:"sensor_driver"` // "bme280" or "xdr"
	SensorBus        string `yaml:"sensor_bus"`    // "spi" or "i2c"
	SensorSPIDevice  string `yaml:"sensor_spi_device"`
	SensorI2CBus     string `yaml:"sensor_i2c_bus"`
	SensorI2CAddr    uint16 `yaml:"sensor_i2c_addr"`
	SensorSerialPort string `yaml:"sensor_serial_port"`
	SensorBaudRate   uint   `yaml:"sensor_baud_rate"`

	// Host
	CPUTempPath string `yaml:"cpu_temp_path"`

	// Sensor placement, metres above sea level
	AltitudeBase  float64 `yaml:"altitude_base"`
	AltitudeMount float64 `yaml:"altitude_mount"`

	// Fixed tags attached to every point
	Tags map[string]string `yaml:"tags"`

	// Store
	Store string `yaml:"store"` // "influx" or "mqtt"

	InfluxHost     string `yaml:"influx_host"`
	InfluxPort     int    `yaml:"influx_port"`
	InfluxUser     string `yaml:"influx_user"`
	InfluxPassword string `yaml:"influx_password"`
	InfluxDatabase string `yaml:"influx_database"`

	MQTTBroker      string `yaml:"mqtt_broker"`
	MQTTClientID    string `yaml:"mqtt_client_id"`
	MQTTTopicPrefix string `yaml:"mqtt_topic_prefix"`

	// Timing, milliseconds
	TickInterval      int     `yaml:"tick_interval"`
	HoldoffInitial    int     `yaml:"holdoff_initial"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	BackoffMax        int     `yaml:"backoff_max"` // 0 = unbounded

	// Status server
	StatusAddr string `yaml:"status_addr"`

	// Display
	DisplayEnabled        bool   `yaml:"display_enabled"`
	DisplayI2CBus         string `yaml:"display_i2c_bus"`
	DisplayI2CAddr        uint16 `yaml:"display_i2c_addr"`
	DisplayUpdateInterval int    `yaml:"display_update_interval"` // ms
}

// Placement defaults. They are preset before the file is read because 0 m
// is a valid altitude.
const (
	defaultAltitudeBase  = 66.0
	defaultAltitudeMount = 6.0
)

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	cfg := newConfig()
	cfg.applyDefaults()
	return cfg
}

func newConfig() *Config {
	return &Config{
		AltitudeBase:  defaultAltitudeBase,
		AltitudeMount: defaultAltitudeMount,
	}
}

// Load reads the configuration file and returns a Config struct.
// Files ending in .yaml or .yml are decoded as YAML, anything else as
// KEY=VALUE lines.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := newConfig()
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(file)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("error decoding yaml config: %w", err)
		}
	default:
		if err := cfg.parseLines(file); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) parseLines(file *os.File) error {
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := c.setValue(key, value); err != nil {
			return fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	if name, ok := strings.CutPrefix(key, "TAG_"); ok {
		if name == "" {
			return fmt.Errorf("tag key %q has no name", key)
		}
		if c.Tags == nil {
			c.Tags = map[string]string{}
		}
		c.Tags[strings.ToLower(name)] = value
		return nil
	}

	switch key {
	// Sensor
	case "SENSOR_DRIVER":
		c.SensorDriver = value
	case "SENSOR_BUS":
		c.SensorBus = value
	case "SENSOR_SPI_DEVICE":
		c.SensorSPIDevice = value
	case "SENSOR_I2C_BUS":
		c.SensorI2CBus = value
	case "SENSOR_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid SENSOR_I2C_ADDR %q: %w", value, err)
		}
		c.SensorI2CAddr = uint16(addr)
	case "SENSOR_SERIAL_PORT":
		c.SensorSerialPort = value
	case "SENSOR_BAUD_RATE":
		rate, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid SENSOR_BAUD_RATE %q: %w", value, err)
		}
		c.SensorBaudRate = uint(rate)

	// Host
	case "CPU_TEMP_PATH":
		c.CPUTempPath = value

	// Placement
	case "ALTITUDE_BASE":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid ALTITUDE_BASE %q: %w", value, err)
		}
		c.AltitudeBase = v
	case "ALTITUDE_MOUNT":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid ALTITUDE_MOUNT %q: %w", value, err)
		}
		c.AltitudeMount = v

	// Store
	case "STORE":
		c.Store = value
	case "INFLUX_HOST":
		c.InfluxHost = value
	case "INFLUX_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid INFLUX_PORT %q: %w", value, err)
		}
		c.InfluxPort = port
	case "INFLUX_USER":
		c.InfluxUser = value
	case "INFLUX_PASSWORD":
		c.InfluxPassword = value
	case "INFLUX_DATABASE":
		c.InfluxDatabase = value
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "MQTT_TOPIC_PREFIX":
		c.MQTTTopicPrefix = value

	// Timing
	case "TICK_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TICK_INTERVAL %q: %w", value, err)
		}
		c.TickInterval = interval
	case "HOLDOFF_INITIAL":
		holdoff, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid HOLDOFF_INITIAL %q: %w", value, err)
		}
		c.HoldoffInitial = holdoff
	case "BACKOFF_MULTIPLIER":
		m, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid BACKOFF_MULTIPLIER %q: %w", value, err)
		}
		c.BackoffMultiplier = m
	case "BACKOFF_MAX":
		ceiling, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BACKOFF_MAX %q: %w", value, err)
		}
		c.BackoffMax = ceiling

	// Status server
	case "STATUS_ADDR":
		c.StatusAddr = value

	// Display
	case "DISPLAY_ENABLED":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_ENABLED %q: %w", value, err)
		}
		c.DisplayEnabled = enabled
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, err)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.SensorDriver == "" {
		c.SensorDriver = "bme280"
	}
	if c.SensorBus == "" {
		c.SensorBus = "spi"
	}
	if c.SensorSPIDevice == "" {
		c.SensorSPIDevice = "SPI0.0"
	}
	if c.SensorI2CAddr == 0 {
		c.SensorI2CAddr = 0x77
	}
	if c.SensorSerialPort == "" {
		c.SensorSerialPort = "/dev/ttyUSB0"
	}
	if c.SensorBaudRate == 0 {
		c.SensorBaudRate = 4800
	}
	if c.CPUTempPath == "" {
		c.CPUTempPath = "/sys/class/thermal/thermal_zone0/temp"
	}
	if len(c.Tags) == 0 {
		c.Tags = map[string]string{"host": "rpi4-68a7f889"}
	}
	if c.Store == "" {
		c.Store = "influx"
	}
	if c.InfluxHost == "" {
		c.InfluxHost = "localhost"
	}
	if c.InfluxPort == 0 {
		c.InfluxPort = 8086
	}
	if c.InfluxUser == "" {
		c.InfluxUser = "root"
	}
	if c.InfluxPassword == "" {
		c.InfluxPassword = "root"
	}
	if c.InfluxDatabase == "" {
		c.InfluxDatabase = "environment"
	}
	if c.MQTTBroker == "" {
		c.MQTTBroker = "tcp://localhost:1883"
	}
	if c.MQTTClientID == "" {
		c.MQTTClientID = "envlogger"
	}
	if c.MQTTTopicPrefix == "" {
		c.MQTTTopicPrefix = "environment"
	}
	if c.TickInterval == 0 {
		c.TickInterval = 2000
	}
	if c.HoldoffInitial == 0 {
		c.HoldoffInitial = 1000
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = 2
	}
	if c.DisplayI2CAddr == 0 {
		c.DisplayI2CAddr = 0x3C
	}
	if c.DisplayUpdateInterval == 0 {
		c.DisplayUpdateInterval = 1000
	}
}

// validate checks that all fields hold usable values.
func (c *Config) validate() error {
	switch c.SensorDriver {
	case "bme280":
		if c.SensorBus != "spi" && c.SensorBus != "i2c" {
			return fmt.Errorf("SENSOR_BUS must be spi or i2c, got %q", c.SensorBus)
		}
	case "xdr":
	default:
		return fmt.Errorf("SENSOR_DRIVER must be bme280 or xdr, got %q", c.SensorDriver)
	}
	switch c.Store {
	case "influx", "mqtt":
	default:
		return fmt.Errorf("STORE must be influx or mqtt, got %q", c.Store)
	}
	if c.InfluxPort < 1 || c.InfluxPort > 65535 {
		return fmt.Errorf("INFLUX_PORT must be 1-65535, got %d", c.InfluxPort)
	}
	if c.TickInterval < 0 {
		return fmt.Errorf("TICK_INTERVAL must be >= 0 (0 = default), got %d", c.TickInterval)
	}
	if c.HoldoffInitial < 0 {
		return fmt.Errorf("HOLDOFF_INITIAL must be >= 0 (0 = default), got %d", c.HoldoffInitial)
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("BACKOFF_MULTIPLIER must be >= 1, got %g", c.BackoffMultiplier)
	}
	if c.BackoffMax < 0 {
		return fmt.Errorf("BACKOFF_MAX must be >= 0, got %d", c.BackoffMax)
	}
	if c.DisplayUpdateInterval < 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be >= 0 (0 = default), got %d", c.DisplayUpdateInterval)
	}
	return nil
}

// Altitude is the sensor height above sea level in metres.
func (c *Config) Altitude() float64 {
	return c.AltitudeBase + c.AltitudeMount
}

// InitGlobal initializes the global configuration from file.
// Only the first call loads; later calls return the first result.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
