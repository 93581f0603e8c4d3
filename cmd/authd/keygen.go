package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newKeygenCmd genera un par RSA listo para pegar en el entorno:
// AUTH_ACTIVE_KID, AUTH_PRIVATE_KEY y la entrada para AUTH_PUBLIC_KEYS.
func newKeygenCmd() *cobra.Command {
	var bits int
	var kid string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Genera un par de claves RSA para el modo asymmetric",
		RunE: func(cmd *cobra.Command, args []string) error {
			if kid == "" {
				kid = "kid-" + time.Now().UTC().Format("20060102T150405Z")
			}

			priv, err := rsa.GenerateKey(rand.Reader, bits)
			if err != nil {
				return err
			}

			privPEM := pem.EncodeToMemory(&pem.Block{
				Type:  "RSA PRIVATE KEY",
				Bytes: x509.MarshalPKCS1PrivateKey(priv),
			})

			pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
			if err != nil {
				return err
			}
			pubPEM := pem.EncodeToMemory(&pem.Block{
				Type:  "PUBLIC KEY",
				Bytes: pubDER,
			})

			pubEntry, _ := json.Marshal(map[string]string{kid: string(pubPEM)})

			fmt.Printf("AUTH_ACTIVE_KID=%s\n\n", kid)
			fmt.Printf("# AUTH_PRIVATE_KEY (inline o guardar en archivo y referenciar con @path)\n%s\n", privPEM)
			fmt.Printf("# Entrada para AUTH_PUBLIC_KEYS (merge con las claves previas en rotación)\n%s\n", pubEntry)
			return nil
		},
	}

	cmd.Flags().IntVar(&bits, "bits", 2048, "tamaño de la clave RSA")
	cmd.Flags().StringVar(&kid, "kid", "", "key id (default: kid-<timestamp UTC>)")
	return cmd
}
