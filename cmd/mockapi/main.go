package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"iprescribe-console/internal/auth"
	"iprescribe-console/internal/config"
	"iprescribe-console/internal/logger"
	"iprescribe-console/internal/mockapi"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	var patients int
	cmd := &cobra.Command{
		Use:           "mockapi",
		Short:         "Serve a local stand-in for the iPrescribe REST API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadMockAPIConfig()
			if err != nil {
				return err
			}
			log := logger.Init("info")
			gin.SetMode(cfg.GinMode)

			api := mockapi.New(mockapi.Options{
				TokenConfig: auth.TokenConfig{
					Secret: cfg.MasterSecret,
					Expiry: cfg.TokenExpiry,
					Issuer: "iprescribe-mockapi",
				},
				PatientCount: patients,
			})

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Port),
				Handler:           api.Router(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			log.Info("mock api listening", "addr", srv.Addr, "base_url", fmt.Sprintf("http://127.0.0.1:%d/api/v1", cfg.Port))
			return srv.ListenAndServe()
		},
	}
	cmd.Flags().IntVar(&patients, "patients", 25, "number of generated patients")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
