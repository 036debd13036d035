// Copyright (C) 2025  yangyuqing
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

// Package config loads the tevaactl configuration file.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the tevaactl configuration structure.
type Config struct {
	Serial SerialConfig `mapstructure:"serial"`
	Log    LogConfig    `mapstructure:"log"`
	Poll   PollConfig   `mapstructure:"poll"`
}

// SerialConfig defines the sensor link settings.
type SerialConfig struct {
	Port       string        `mapstructure:"port"`
	BaudRate   int           `mapstructure:"baud_rate" validate:"oneof=1200 2400 4800 9600 19200 38400 57600 115200"`
	DeviceAddr uint8         `mapstructure:"device_addr" validate:"min=1,max=247"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"min=0"`
}

// LogConfig defines logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warning error none"`
}

// PollConfig defines the monitor command's polling cadence.
type PollConfig struct {
	Interval      time.Duration `mapstructure:"interval" validate:"min=0"`
	WaveformEvery int           `mapstructure:"waveform_every" validate:"min=0"`
}

// Load loads configuration from configFile, or from the default search
// paths when configFile is empty. A missing config file yields the
// defaults; a malformed or invalid one is an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("tevaactl")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/tevaactl/")
		v.AddConfigPath("$HOME/.tevaactl")
		v.AddConfigPath(".")
	}

	// Factory settings of the sensor.
	v.SetDefault("serial.baud_rate", 9600)
	v.SetDefault("serial.device_addr", 1)
	v.SetDefault("serial.timeout", time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("poll.interval", time.Second)
	v.SetDefault("poll.waveform_every", 0)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}
