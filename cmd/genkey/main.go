package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"fmt"
)

func main() {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		panic(err)
	}
	privDER := x509.MarshalPKCS1PrivateKey(priv)

	fmt.Printf("Public key (hex):  %s\n", hex.EncodeToString(pubDER))
	fmt.Printf("Private key (hex): %s\n", hex.EncodeToString(privDER))
}
