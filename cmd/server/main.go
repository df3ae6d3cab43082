package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Brownie44l1/dogbreed-api/internal/config"
	"github.com/Brownie44l1/dogbreed-api/internal/core"
	logpkg "github.com/Brownie44l1/dogbreed-api/internal/log"
	"github.com/Brownie44l1/dogbreed-api/internal/model"
	"github.com/Brownie44l1/dogbreed-api/internal/server"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dogbreed-api",
		Short:         "Dog breed classification API",
		Long:          "Serve ONNX image classifiers over HTTP and return the top-3 dog breeds for an image.",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("port", "", "Port to listen on (env PORT)")
	pf.String("models-dir", "", "Directory holding model files (env MODELS_DIR)")
	pf.String("labels", "", "Path to class_indices.json (env LABELS_PATH)")
	pf.String("onnxruntime-lib", "", "Path to the ONNX Runtime shared library (env ONNXRUNTIME_LIB)")
	pf.String("layout", "", "Model input layout, NHWC or NCHW (env INPUT_LAYOUT)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	})
	root.AddCommand(newPredictCmd())

	return root
}

// loadConfig reads .env and the environment, then applies explicitly set flags.
func loadConfig(cmd *cobra.Command, logger core.Logger) (config.Config, error) {
	if !config.LoadDotEnv() {
		logger.Debug("No .env file found, using system environment variables")
	}

	cfg, err := config.LoadFromEnv(logger)
	if err != nil {
		return cfg, err
	}

	overrides := map[string]*string{
		"port":            &cfg.Port,
		"models-dir":      &cfg.ModelsDir,
		"labels":          &cfg.LabelsPath,
		"onnxruntime-lib": &cfg.OnnxRuntimeLib,
		"layout":          &cfg.InputLayout,
	}
	flags := cmd.Flags()
	for name, field := range overrides {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return cfg, err
		}
		*field = value
	}
	cfg.InputLayout = strings.ToUpper(cfg.InputLayout)
	return cfg, cfg.Validate()
}

func runServe(cmd *cobra.Command) error {
	logger := logpkg.CreateLogger()

	cfg, err := loadConfig(cmd, logger)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	runtime, err := model.NewRuntime(cfg.OnnxRuntimeLib)
	if err != nil {
		return err
	}
	defer func() {
		if err := runtime.Close(); err != nil {
			logger.Warn("Failed to destroy ONNX environment: %v", err)
		}
	}()

	srv, err := server.NewServer(server.Options{
		Config: cfg,
		Logger: logger,
		Loader: runtime,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	logger.Info("Endpoints:")
	logger.Info("  GET  /health       - Health check")
	logger.Info("  GET  /models       - Available models")
	logger.Info("  GET  /metrics      - Prometheus metrics")
	logger.Info("  POST /predict/file - Predict from image upload")
	logger.Info("  POST /predict/url  - Predict from image URL")
	logger.Info("Upload test: curl -X POST -F \"file=@dog.jpg\" \"http://localhost:%s/predict/file?model_name=<model>\"", cfg.Port)

	return srv.Run()
}
