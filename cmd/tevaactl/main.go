// tevaactl
//
// Command-line front end for the TEV/AA partial-discharge sensor.
// Talks Modbus RTU over a serial port through the tevaa engine; the
// CLI only selects operations and presents results.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	tevaa "github.com/yangyuqing15715165798/tevaa"
	"github.com/yangyuqing15715165798/tevaa/internal/config"
)

var version = "1.0.0"

var (
	cfgFile    string
	flagPort   string
	flagBaud   int
	flagAddr   uint8
	flagTmout  time.Duration
	verbose    bool
	jsonOutput bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "tevaactl",
		Short:   "tevaactl - TEV/AA partial-discharge sensor tool",
		Long:    "tevaactl reads live values, waveforms and settings from a\nTEV/AA combined partial-discharge sensor over Modbus RTU.",
		Version: version,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./tevaactl.yaml)")
	rootCmd.PersistentFlags().StringVarP(&flagPort, "port", "p", "", "serial port, e.g. /dev/ttyUSB0 or COM3")
	rootCmd.PersistentFlags().IntVarP(&flagBaud, "baud", "b", 0, "baud rate (default from config: 9600)")
	rootCmd.PersistentFlags().Uint8VarP(&flagAddr, "addr", "a", 0, "device address 1-247 (default from config: 1)")
	rootCmd.PersistentFlags().DurationVar(&flagTmout, "timeout", 0, "response timeout (default from config: 1s)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(
		newPortsCmd(),
		newReadCmd(),
		newWaveformCmd(),
		newGetCmd(),
		newSetCmd(),
		newMonitorCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads the config file and applies command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if flagPort != "" {
		cfg.Serial.Port = flagPort
	}
	if flagBaud != 0 {
		cfg.Serial.BaudRate = flagBaud
	}
	if flagAddr != 0 {
		cfg.Serial.DeviceAddr = flagAddr
	}
	if flagTmout != 0 {
		cfg.Serial.Timeout = flagTmout
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if cfg.Serial.Port == "" {
		return nil, fmt.Errorf("no serial port specified (use --port or the config file; `tevaactl ports` lists candidates)")
	}
	return cfg, nil
}

// openSession builds and connects a sensor session from the config.
func openSession(cfg *config.Config) (*tevaa.Session, error) {
	session, err := tevaa.NewSession(tevaa.Config{
		Port:       cfg.Serial.Port,
		BaudRate:   cfg.Serial.BaudRate,
		DeviceAddr: cfg.Serial.DeviceAddr,
		Timeout:    cfg.Serial.Timeout,
	})
	if err != nil {
		return nil, err
	}

	level, ok := tevaa.StringToLevel[strings.ToUpper(cfg.Log.Level)]
	if !ok {
		level = tevaa.LevelInfo
	}
	session.SetLogger(tevaa.NewSimpleLogger(os.Stderr, level, "tevaactl"))

	if err := session.Connect(); err != nil {
		return nil, err
	}
	return session, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// newPortsCmd lists the serial ports on this machine.
func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List available serial ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := tevaa.AvailablePorts()
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(ports)
			}
			if len(ports) == 0 {
				fmt.Println("no serial ports found")
				return nil
			}
			for _, p := range ports {
				if p.Description != "" {
					fmt.Printf("%s - %s\n", p.Name, p.Description)
				} else {
					fmt.Println(p.Name)
				}
			}
			return nil
		},
	}
}

// newReadCmd reads the live sensor values once.
func newReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read",
		Short: "Read the live TEV/AA sensor values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			session, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer session.Disconnect()

			values, err := session.GetAllSensorValues()
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(values)
			}
			fmt.Printf("TEV value:            %d dB\n", values.TEVValue)
			fmt.Printf("TEV discharge count:  %d\n", values.TEVDischargeCount)
			fmt.Printf("AA value:             %d\n", values.AAValue)
			return nil
		},
	}
}

// newWaveformCmd reads one waveform block.
func newWaveformCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "waveform [tev|aa]",
		Short:     "Read a 100-sample waveform block",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"tev", "aa"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := tevaa.WaveformTEV
			if args[0] == "aa" {
				kind = tevaa.WaveformAA
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			session, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer session.Disconnect()

			wf, err := session.GetWaveform(kind)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(wf)
			}
			for i, sample := range wf {
				fmt.Printf("%3d: %d\n", i, sample)
			}
			return nil
		},
	}
}

// newGetCmd reads a device setting.
func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "get [addr|baud|tev-threshold|aa-threshold]",
		Short:     "Read a device setting",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"addr", "baud", "tev-threshold", "aa-threshold"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			session, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer session.Disconnect()

			switch args[0] {
			case "addr":
				addr, err := session.GetDeviceAddress()
				if err != nil {
					return err
				}
				fmt.Println(addr)
			case "baud":
				rate, err := session.GetBaudRate()
				if err != nil {
					return err
				}
				fmt.Println(rate)
			case "tev-threshold":
				v, err := session.GetThreshold(tevaa.ThresholdTEV)
				if err != nil {
					return err
				}
				fmt.Println(v)
			case "aa-threshold":
				v, err := session.GetThreshold(tevaa.ThresholdAA)
				if err != nil {
					return err
				}
				fmt.Println(v)
			}
			return nil
		},
	}
}

// newSetCmd writes a device setting.
func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "set [addr|baud|tev-threshold|aa-threshold] VALUE",
		Short:     "Write a device setting",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"addr", "baud", "tev-threshold", "aa-threshold"},
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("value %q is not a number", args[1])
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			session, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer session.Disconnect()

			switch args[0] {
			case "addr":
				if value < 0 || value > 255 {
					return fmt.Errorf("device address %d outside 1-247", value)
				}
				if err := session.SetDeviceAddress(uint8(value)); err != nil {
					return err
				}
				fmt.Printf("device address set to %d\n", value)
			case "baud":
				if err := session.SetBaudRate(value); err != nil {
					return err
				}
				fmt.Printf("device baud rate set to %d; reconnect at the new rate\n", value)
			case "tev-threshold", "aa-threshold":
				if value < 0 || value > 0xFFFF {
					return fmt.Errorf("threshold %d does not fit a 16-bit register", value)
				}
				kind := tevaa.ThresholdTEV
				if args[0] == "aa-threshold" {
					kind = tevaa.ThresholdAA
				}
				if err := session.SetThreshold(kind, uint16(value)); err != nil {
					return err
				}
				fmt.Printf("%s threshold set to %d\n", kind, value)
			default:
				return fmt.Errorf("unknown setting %q", args[0])
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tevaactl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tevaactl %s\n", version)
		},
	}
}

// newMonitorCmd polls the sensor until interrupted.
func newMonitorCmd() *cobra.Command {
	var interval time.Duration
	var waveformEvery int

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Continuously poll the sensor values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if interval != 0 {
				cfg.Poll.Interval = interval
			}
			if waveformEvery != 0 {
				cfg.Poll.WaveformEvery = waveformEvery
			}

			session, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer session.Disconnect()

			poller := tevaa.NewPoller(session, cfg.Poll.Interval)
			poller.SetWaveformEvery(cfg.Poll.WaveformEvery)
			poller.SetOnData(func(v tevaa.SensorValues) {
				if jsonOutput {
					printJSON(v)
					return
				}
				fmt.Printf("%s  TEV=%d dB  discharges=%d  AA=%d\n",
					time.Now().Format("15:04:05"), v.TEVValue, v.TEVDischargeCount, v.AAValue)
			})
			poller.SetOnWaveform(func(kind tevaa.WaveformKind, wf tevaa.Waveform) {
				fmt.Printf("%s  %s waveform: %d samples\n", time.Now().Format("15:04:05"), kind, len(wf))
			})
			poller.SetOnError(func(err error) {
				fmt.Fprintf(os.Stderr, "poll error: %v\n", err)
			})

			poller.Start()
			defer poller.Stop()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			fmt.Println("\nstopping")
			return nil
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "poll interval (default from config: 1s)")
	cmd.Flags().IntVar(&waveformEvery, "waveform-every", 0, "also read waveforms every N polls (0 = never)")
	return cmd
}
