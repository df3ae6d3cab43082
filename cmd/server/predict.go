package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Brownie44l1/dogbreed-api/internal/labels"
	logpkg "github.com/Brownie44l1/dogbreed-api/internal/log"
	"github.com/Brownie44l1/dogbreed-api/internal/model"
	"github.com/Brownie44l1/dogbreed-api/internal/predict"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
)

func newPredictCmd() *cobra.Command {
	var modelName string

	cmd := &cobra.Command{
		Use:   "predict <image>",
		Short: "Classify a local image file and print the predictions as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logpkg.CreateLogger()

			cfg, err := loadConfig(cmd, logger)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			runtime, err := model.NewRuntime(cfg.OnnxRuntimeLib)
			if err != nil {
				return err
			}
			defer func() { _ = runtime.Close() }()

			cache := model.NewCache(model.CacheConfig{
				Dir:    cfg.ModelsDir,
				Loader: runtime,
				Logger: logger,
			})
			defer func() { _ = cache.Close() }()

			resp, err := classifyFile(cmd.Context(), cache, labels.Load(cfg.LabelsPath, logger), cfg.InputLayout, modelName, data)
			if err != nil {
				return err
			}

			out, err := sonic.ConfigStd.MarshalIndent(resp, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}

	cmd.Flags().StringVarP(&modelName, "model", "m", "", "Model file name inside the models directory")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func classifyFile(ctx context.Context, cache *model.Cache, table *labels.Table, layout, modelName string, data []byte) (model.PredictionResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	m, err := cache.GetOrLoad(ctx, modelName)
	if err != nil {
		return model.PredictionResponse{}, err
	}
	return predict.Classify(ctx, m, data, layout, table)
}
