// Copyright 2024 Luigi Borriello
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shared

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"

	"github.com/luigi-borriello-dev/dome-quotes/internal/auth"
	"github.com/luigi-borriello-dev/dome-quotes/internal/cfg"
	"github.com/luigi-borriello-dev/dome-quotes/internal/client/authinjector"
	"github.com/luigi-borriello-dev/dome-quotes/quote"
	quoteshared "github.com/luigi-borriello-dev/dome-quotes/quote/shared"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const userAgent = "dome-quotes-client"

// GetQuoteClient returns a client for the HTTP API, acting as the configured actor.
func GetQuoteClient() (*QuoteClient, error) {
	base, err := cfg.CheckURL(viper.GetString(Address))
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !viper.GetBool(InsecureConn) {
		config, err := loadTLSConfig()
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = config
	}

	header := make(http.Header)
	if role := viper.GetString(ActorRole); role != "" {
		r, err := quote.ParseRole(role)
		if err != nil {
			return nil, err
		}
		auth.SetHeaders(header, quote.Actor{ID: viper.GetString(ActorID), Role: r})
	}
	if md := viper.GetString(AuthMD); md != "" {
		header.Set("Authorization", md)
	}

	header.Set("User-Agent", userAgent)

	return &QuoteClient{
		base: base,
		requester: &quoteshared.HTTPRequester{
			Client: &http.Client{Transport: transport, Timeout: requestTimeout},
			Header: header,
		},
	}, nil
}

// ClientAndContext returns the command context and a client for the HTTP API.
func ClientAndContext() (context.Context, *QuoteClient, error) {
	ctx, ok := viper.Get("initCTX").(context.Context)
	if !ok {
		return nil, nil, fmt.Errorf("couldn't fetch initial context")
	}
	client, err := GetQuoteClient()
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't initialise client: %w", err)
	}
	return ctx, client, nil
}

// GetHealthClient returns a gRPC health client and its connection.
func GetHealthClient() (healthpb.HealthClient, *grpc.ClientConn, error) {
	creds := insecure.NewCredentials()
	if !viper.GetBool(InsecureConn) {
		config, err := loadTLSConfig()
		if err != nil {
			return nil, nil, err
		}
		creds = credentials.NewTLS(config)
	}
	authorization := viper.GetString(AuthMD)
	conn, err := grpc.NewClient(
		viper.GetString(GRPCAddress),
		grpc.WithTransportCredentials(creds),
		grpc.WithUserAgent(userAgent),
		grpc.WithChainUnaryInterceptor(authinjector.InjectUnaryAuthInterceptor(authorization)),
		grpc.WithChainStreamInterceptor(authinjector.InjectStreamAuthInterceptor(authorization)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("could not create health client for %s: %w", viper.GetString(GRPCAddress), err)
	}
	return healthpb.NewHealthClient(conn), conn, nil
}

func loadTLSConfig() (*tls.Config, error) {
	return TLSFiles{
		CACert:  viper.GetString(CACert),
		Cert:    viper.GetString(ClientCert),
		CertKey: viper.GetString(ClientCertKey),
	}.Config()
}

// TLSFiles names the PEM files of a client TLS setup. Empty names are left out.
type TLSFiles struct {
	CACert  string
	Cert    string
	CertKey string
}

// Config builds a TLS 1.2+ client config trusting CACert, if set, on top of nothing else, and
// presenting the Cert and CertKey pair when both are set.
func (f TLSFiles) Config() (*tls.Config, error) {
	config := &tls.Config{MinVersion: tls.VersionTLS12}
	if f.CACert != "" {
		pem, err := os.ReadFile(f.CACert)
		if err != nil {
			return nil, fmt.Errorf("couldn't read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", f.CACert)
		}
		config.RootCAs = pool
	}
	if f.Cert == "" || f.CertKey == "" {
		return config, nil
	}
	pair, err := tls.LoadX509KeyPair(f.Cert, f.CertKey)
	if err != nil {
		return nil, fmt.Errorf("couldn't load client certificate: %w", err)
	}
	config.Certificates = []tls.Certificate{pair}
	return config, nil
}
