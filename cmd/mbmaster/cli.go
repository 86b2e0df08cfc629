package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	modbus "modbus-master"
	"modbus-master/client"
	"modbus-master/internal/simulator"
	"modbus-master/pdu"
)

var (
	cfgFile   string
	logger    *zap.Logger
	appConfig *Config
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "mbmaster",
	Short: "Modbus 主站工具",
	Long: `Modbus TCP/RTU 主站命令列工具。
支援讀寫線圈與暫存器、週期輪詢、異常碼查詢，並內建本地模擬從站。`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 載入配置 (除了 version、help 和 generate 命令)
		var loadErr error
		appConfig = DefaultConfig()
		if cmd.Name() != "version" && cmd.Name() != "help" && cmd.Name() != "generate" {
			if cfg, err := LoadConfig(cfgFile); err != nil {
				loadErr = err
			} else {
				appConfig = cfg
			}
		}
		applyConnectionFlags(cmd)

		// 命令列參數覆蓋後重新驗證
		if err := appConfig.Validate(); err != nil {
			return fmt.Errorf("配置驗證失敗: %w", err)
		}

		// 初始化日誌
		var err error
		logger, err = newLogger(appConfig.Logging)
		if err != nil {
			return fmt.Errorf("初始化日誌失敗: %w", err)
		}

		if loadErr != nil {
			// 配置載入失敗時使用預設值
			if cfgFile != "" {
				logger.Warn("載入配置檔失敗，使用預設配置", zap.Error(loadErr))
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// applyConnectionFlags 以命令列參數覆蓋連線配置
func applyConnectionFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("address") {
		appConfig.Connection.Address, _ = flags.GetString("address")
	}
	if flags.Changed("mode") {
		appConfig.Connection.Mode, _ = flags.GetString("mode")
	}
	if flags.Changed("slave-id") {
		appConfig.Connection.SlaveID, _ = flags.GetUint8("slave-id")
	}
	if flags.Changed("timeout") {
		appConfig.Connection.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("retries") {
		appConfig.Retry.MaxAttempts, _ = flags.GetInt("retries")
	}
}

// newClient 依配置建立並連線主站
func newClient(reg prometheus.Registerer) (*client.Client, error) {
	conn := appConfig.ClientConnection()
	if appConfig.Logging.Level == "debug" {
		conn.Logger = zap.NewStdLog(logger.Named("transport"))
	}

	handler, err := client.NewHandler(conn)
	if err != nil {
		return nil, err
	}

	opts := []client.Option{
		client.WithLogger(logger),
		client.WithRetry(appConfig.RetryPolicy()),
	}
	if reg != nil {
		opts = append(opts, client.WithMetrics(client.NewMetrics(reg)))
	}

	c := client.New(handler, opts...)
	if err := c.Connect(); err != nil {
		return nil, fmt.Errorf("連線 %s 失敗: %w", conn.Address, err)
	}
	return c, nil
}

// runWithClient 建立主站並在收到中斷信號時取消請求
func runWithClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	c, err := newClient(nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return fn(ctx, c)
}

func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("無效的數值 %q: %w", s, err)
	}
	return uint16(v), nil
}

func parseUint16s(args []string) ([]uint16, error) {
	values := make([]uint16, len(args))
	for i, s := range args {
		v, err := parseUint16(s)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func parseCoils(args []string) ([]modbus.Coil, error) {
	coils := make([]modbus.Coil, len(args))
	for i, s := range args {
		c, err := modbus.ParseCoil(s)
		if err != nil {
			return nil, fmt.Errorf("無效的線圈狀態 %q: %w", s, err)
		}
		coils[i] = c
	}
	return coils, nil
}

func printCoils(address uint16, coils []modbus.Coil) {
	for i, c := range coils {
		fmt.Printf("%5d  %s\n", int(address)+i, c)
	}
}

// printRegisters 輸出暫存器，指定 --type 時轉為工程值
func printRegisters(cmd *cobra.Command, address uint16, regs []uint16) error {
	dataType, _ := cmd.Flags().GetString("type")
	if dataType == "" {
		for i, r := range regs {
			fmt.Printf("%5d  %5d  0x%04X\n", int(address)+i, r, r)
		}
		return nil
	}

	order, _ := cmd.Flags().GetString("word-order")
	scale, _ := cmd.Flags().GetFloat64("scale")
	values, err := decodeValues(regs, dataType, order, scale)
	if err != nil {
		return err
	}

	dt, _ := pdu.ParseDataType(dataType)
	for i, v := range values {
		fmt.Printf("%5d  %v\n", int(address)+i*dt.RegisterCount(), v)
	}
	return nil
}

// readCmd 讀取命令
var readCmd = &cobra.Command{
	Use:       "read {coils|discrete-inputs|holding-registers|input-registers} ADDRESS QUANTITY",
	Short:     "讀取線圈或暫存器",
	Args:      cobra.ExactArgs(3),
	ValidArgs: []string{"coils", "discrete-inputs", "holding-registers", "input-registers"},
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := parseUint16(args[1])
		if err != nil {
			return err
		}
		quantity, err := parseUint16(args[2])
		if err != nil {
			return err
		}

		return runWithClient(cmd, func(ctx context.Context, c *client.Client) error {
			switch args[0] {
			case "coils":
				coils, err := c.ReadCoils(ctx, address, quantity)
				if err != nil {
					return err
				}
				printCoils(address, coils)
			case "discrete-inputs":
				inputs, err := c.ReadDiscreteInputs(ctx, address, quantity)
				if err != nil {
					return err
				}
				printCoils(address, inputs)
			case "holding-registers":
				regs, err := c.ReadHoldingRegisters(ctx, address, quantity)
				if err != nil {
					return err
				}
				return printRegisters(cmd, address, regs)
			case "input-registers":
				regs, err := c.ReadInputRegisters(ctx, address, quantity)
				if err != nil {
					return err
				}
				return printRegisters(cmd, address, regs)
			default:
				return fmt.Errorf("未知的讀取類型: %s", args[0])
			}
			return nil
		})
	},
}

// writeCmd 寫入命令
var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "寫入線圈或暫存器",
}

var writeCoilCmd = &cobra.Command{
	Use:   "coil ADDRESS {On|Off}",
	Short: "寫入單一線圈 (FC 05)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := parseUint16(args[0])
		if err != nil {
			return err
		}
		coils, err := parseCoils(args[1:])
		if err != nil {
			return err
		}

		return runWithClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := c.WriteSingleCoil(ctx, address, coils[0]); err != nil {
				return err
			}
			fmt.Printf("線圈 %d 已設為 %s\n", address, coils[0])
			return nil
		})
	},
}

var writeRegisterCmd = &cobra.Command{
	Use:   "register ADDRESS VALUE",
	Short: "寫入單一暫存器 (FC 06)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := parseUint16s(args)
		if err != nil {
			return err
		}

		return runWithClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := c.WriteSingleRegister(ctx, values[0], values[1]); err != nil {
				return err
			}
			fmt.Printf("暫存器 %d 已寫入 %d\n", values[0], values[1])
			return nil
		})
	},
}

var writeCoilsCmd = &cobra.Command{
	Use:   "coils ADDRESS STATE...",
	Short: "寫入多個線圈 (FC 15)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := parseUint16(args[0])
		if err != nil {
			return err
		}
		coils, err := parseCoils(args[1:])
		if err != nil {
			return err
		}

		return runWithClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := c.WriteMultipleCoils(ctx, address, coils); err != nil {
				return err
			}
			fmt.Printf("已寫入 %d 個線圈，起始位址 %d\n", len(coils), address)
			return nil
		})
	},
}

var writeRegistersCmd = &cobra.Command{
	Use:   "registers ADDRESS VALUE...",
	Short: "寫入多個暫存器 (FC 16)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := parseUint16s(args)
		if err != nil {
			return err
		}

		return runWithClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := c.WriteMultipleRegisters(ctx, values[0], values[1:]); err != nil {
				return err
			}
			fmt.Printf("已寫入 %d 個暫存器，起始位址 %d\n", len(values)-1, values[0])
			return nil
		})
	},
}

// readWriteCmd 讀寫多個暫存器命令
var readWriteCmd = &cobra.Command{
	Use:   "readwrite WRITE_ADDRESS READ_ADDRESS READ_QUANTITY VALUE...",
	Short: "寫入後讀取多個暫存器 (FC 23)",
	Args:  cobra.MinimumNArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := parseUint16s(args)
		if err != nil {
			return err
		}
		writeAddr, readAddr, readQty := values[0], values[1], values[2]

		return runWithClient(cmd, func(ctx context.Context, c *client.Client) error {
			regs, err := c.WriteReadMultipleRegisters(ctx, writeAddr, values[3:], readAddr, readQty)
			if err != nil {
				return err
			}
			return printRegisters(cmd, readAddr, regs)
		})
	},
}

// pollCmd 輪詢命令
var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "依配置週期性執行請求",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(appConfig.Poll.Requests) == 0 {
			return fmt.Errorf("配置中沒有輪詢請求")
		}
		if interval, _ := cmd.Flags().GetDuration("interval"); interval > 0 {
			appConfig.Poll.Interval = interval
		}

		registry := prometheus.NewRegistry()
		c, err := newClient(registry)
		if err != nil {
			return err
		}
		defer c.Close()

		var metrics *MetricsServer
		if appConfig.Metrics.Enabled {
			metrics = NewMetricsServer(registry, c.Stats(), logger)
			metrics.Start(appConfig.Metrics.Endpoint, appConfig.Metrics.Port)
			metrics.SetReady(true)
		}

		// 設置優雅關閉
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger.Info("開始輪詢",
			zap.String("address", appConfig.Connection.Address),
			zap.Int("requests", len(appConfig.Poll.Requests)),
			zap.Duration("interval", appConfig.Poll.Interval),
		)

		poller := NewPoller(c, appConfig.Poll, logger)
		if err := poller.Run(ctx); err != nil {
			return err
		}

		if metrics != nil {
			metrics.SetReady(false)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metrics.Shutdown(shutdownCtx); err != nil {
				logger.Error("關閉指標伺服器失敗", zap.Error(err))
			}
		}

		logger.Info("輪詢已停止", zap.Any("stats", c.Stats().Snapshot()))
		return nil
	},
}

// simulateCmd 模擬從站命令
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "啟動本地模擬從站",
	Long:  "啟動 Modbus TCP 模擬從站，可注入延遲、忙碌與封包遺失等情境，供主站測試使用。",
	RunE: func(cmd *cobra.Command, args []string) error {
		simCfg := appConfig.Simulator
		if cmd.Flags().Changed("listen") {
			simCfg.Address, _ = cmd.Flags().GetString("listen")
		}
		if cmd.Flags().Changed("scenario") {
			simCfg.Scenario, _ = cmd.Flags().GetString("scenario")
		}
		if cmd.Flags().Changed("latency") {
			simCfg.Latency, _ = cmd.Flags().GetDuration("latency")
		}

		opts := []simulator.Option{
			simulator.WithLogger(logger),
			simulator.WithLatency(simCfg.Latency),
			simulator.WithScenario(simulator.ParseScenarioType(simCfg.Scenario), simCfg.Params),
		}
		if meter, _ := cmd.Flags().GetBool("meter"); meter {
			opts = append(opts, simulator.WithPowerMeter(simCfg.MeterInterval))
		}
		dev := simulator.New(simCfg.Address, opts...)

		logger.Info("啟動模擬從站",
			zap.String("address", simCfg.Address),
			zap.String("scenario", simCfg.Scenario),
		)

		// 設置優雅關閉
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		if err := dev.Start(ctx); err != nil {
			return fmt.Errorf("啟動模擬從站失敗: %w", err)
		}

		// 等待信號
		sig := <-sigChan
		logger.Info("收到關閉信號", zap.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := dev.Stop(shutdownCtx); err != nil {
			logger.Error("關閉模擬從站失敗", zap.Error(err))
			return err
		}

		stats := dev.Stats()
		logger.Info("模擬從站已停止",
			zap.Uint64("requests", stats.RequestCount.Load()),
			zap.Uint64("faults", stats.FaultCount.Load()),
		)
		return nil
	},
}

// exceptionsCmd 異常碼列表命令
var exceptionsCmd = &cobra.Command{
	Use:   "exceptions",
	Short: "列出 Modbus 異常碼",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("代碼  名稱                                說明")
		fmt.Println("----  ----------------------------------  ----")
		for _, code := range modbus.ExceptionCodes() {
			fmt.Printf("0x%02X  %-34s  %s\n", code.Byte(), code, code.Description())
		}
	},
}

// configCmd 配置命令
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "配置管理",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "驗證配置檔",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(cfgFile)
		if err != nil {
			return err
		}

		fmt.Println("配置驗證通過")
		fmt.Printf("  連線: %s %s (slave %d)\n", cfg.Connection.Mode, cfg.Connection.Address, cfg.Connection.SlaveID)
		fmt.Printf("  重試: 最多 %d 次，間隔 %s\n", cfg.Retry.MaxAttempts, cfg.Retry.Backoff)
		fmt.Printf("  輪詢: %d 個請求，間隔 %s\n", len(cfg.Poll.Requests), cfg.Poll.Interval)
		fmt.Printf("  指標: %v (port %d)\n", cfg.Metrics.Enabled, cfg.Metrics.Port)
		return nil
	},
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "生成範例配置檔",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		cfg := DefaultConfig()
		cfg.Poll.Requests = []PollRequest{
			{
				Name:     "voltage",
				Function: "read_holding_registers",
				Address:  0,
				Quantity: 1,
				DataType: "uint16",
				Scale:    10,
			},
			{
				Name:     "active_power",
				Function: "read_holding_registers",
				Address:  6,
				Quantity: 2,
				DataType: "uint32",
				Scale:    10,
			},
			{
				Name:     "relay",
				Function: "read_coils",
				Address:  0,
				Quantity: 8,
			},
		}

		if err := cfg.SaveConfig(output); err != nil {
			return err
		}

		fmt.Printf("範例配置已生成: %s\n", output)
		return nil
	},
}

// versionCmd 版本命令
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "顯示版本資訊",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mbmaster version %s\n", Version)
		fmt.Printf("  Build: %s\n", BuildTime)
		fmt.Printf("  Commit: %s\n", GitCommit)
	},
}

func init() {
	// 全域 flags
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "配置檔路徑")
	flags.StringP("address", "a", "", "從站位址 (TCP 為 host:port，RTU 為串列埠)")
	flags.String("mode", client.ModeTCP, "連線模式 (tcp|rtu)")
	flags.Uint8P("slave-id", "s", 1, "從站 ID")
	flags.Duration("timeout", 5*time.Second, "請求逾時")
	flags.Int("retries", 1, "最大嘗試次數")

	// 資料型別 flags
	for _, cmd := range []*cobra.Command{readCmd, readWriteCmd} {
		cmd.Flags().StringP("type", "t", "", "資料型別 (uint16|int16|uint32|int32|float32)")
		cmd.Flags().String("word-order", "abcd", "32 位元字序 (abcd|cdab)")
		cmd.Flags().Float64("scale", 1, "縮放倍率")
	}

	// poll 命令 flags
	pollCmd.Flags().DurationP("interval", "i", 0, "輪詢間隔")

	// simulate 命令 flags
	simulateCmd.Flags().StringP("listen", "l", "", "監聽位址")
	simulateCmd.Flags().String("scenario", "normal", "模擬情境 (normal|jitter|busy|packet_loss)")
	simulateCmd.Flags().Duration("latency", 0, "固定回應延遲")
	simulateCmd.Flags().Bool("meter", true, "以電表數值填入保持暫存器")

	// config 命令 flags
	configGenerateCmd.Flags().StringP("output", "o", "config.json", "輸出檔案路徑 (.json 或 .yaml)")

	// 組裝命令樹
	writeCmd.AddCommand(writeCoilCmd, writeRegisterCmd, writeCoilsCmd, writeRegistersCmd)
	configCmd.AddCommand(configValidateCmd, configGenerateCmd)

	rootCmd.AddCommand(
		readCmd,
		writeCmd,
		readWriteCmd,
		pollCmd,
		simulateCmd,
		exceptionsCmd,
		configCmd,
		versionCmd,
	)
}

// Execute 執行 CLI
func Execute() error {
	return rootCmd.Execute()
}
