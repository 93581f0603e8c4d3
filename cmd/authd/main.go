package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	var envFile string

	root := &cobra.Command{
		Use:   "authd",
		Short: "Core de autenticación de restin.ai",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env es opcional: en prod las vars vienen del entorno real.
			if envFile != "" {
				if st, err := os.Stat(envFile); err == nil && !st.IsDir() {
					_ = godotenv.Load(envFile)
				}
			}
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "ruta a .env (si existe, se carga)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newKeygenCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newMigrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
