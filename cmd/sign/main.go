package main

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
)

func main() {
	privKeyHex := flag.String("key", "", "Hex-encoded PKCS#1 RSA private key")
	challengeHex := flag.String("challenge", "", "Hex-encoded challenge from 'signIn start'")
	flag.Parse()

	if *privKeyHex == "" || *challengeHex == "" {
		fmt.Fprintln(os.Stderr, "Usage: sign -key <private-key-hex> -challenge <challenge-hex>")
		os.Exit(1)
	}

	privDER, err := hex.DecodeString(*privKeyHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid private key: %v\n", err)
		os.Exit(1)
	}
	priv, err := x509.ParsePKCS1PrivateKey(privDER)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse private key: %v\n", err)
		os.Exit(1)
	}

	challenge, err := hex.DecodeString(*challengeHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid challenge: %v\n", err)
		os.Exit(1)
	}

	// Sign the challenge bytes directly; the server recovers them from
	// the signature and compares against the nonce it issued.
	signature, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.Hash(0), challenge)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Signing failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("signature: %s\n", hex.EncodeToString(signature))
}
