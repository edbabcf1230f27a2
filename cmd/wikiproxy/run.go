package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/liweitianux/wikiproxy/internal/admission"
	"github.com/liweitianux/wikiproxy/internal/config"
	"github.com/liweitianux/wikiproxy/internal/httpclient"
	"github.com/liweitianux/wikiproxy/internal/proxy"
	"github.com/liweitianux/wikiproxy/internal/resolver"
	"github.com/liweitianux/wikiproxy/internal/socks5"
	"github.com/liweitianux/wikiproxy/internal/telemetry"
	"github.com/liweitianux/wikiproxy/internal/urlmap"
)

func newRunCmd() *cobra.Command {
	var configPath string
	var listenAddr string
	var metricsAddr string
	var debugLog bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load a config file and start the proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, listenAddr, metricsAddr, debugLog)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "wikiproxy.yaml", "path to the YAML config file")
	cmd.Flags().StringVarP(&listenAddr, "listen", "l", ":8080", "address for the HTTP listener adapter")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "address for the Prometheus /metrics endpoint (disabled if empty)")
	cmd.Flags().BoolVar(&debugLog, "debug", false, "use a human-readable development logger")
	return cmd
}

func runServe(configPath, listenAddr, metricsAddr string, debugLog bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := telemetry.NewLogger(debugLog)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()

	res, err := resolver.New(resolver.Config{
		Nameservers: cfg.DNS.Nameservers,
		Timeout:     cfg.DNS.Timeout,
		Retrans:     cfg.DNS.Retrans,
		PreferIPv6:  cfg.DNS.PreferIPv6,
		CacheSize:   cfg.DNS.CacheSize,
		CacheTTL:    cfg.DNS.CacheTTL,
	}, log)
	if err != nil {
		return fmt.Errorf("building resolver: %w", err)
	}

	var dialer httpclient.Dialer
	if cfg.Proxy.URL != "" {
		dialer, err = socks5.New(cfg.Proxy.URL, res, cfg.Proxy.DialTimeout)
		if err != nil {
			return fmt.Errorf("building SOCKS5 dialer: %w", err)
		}
	} else {
		dialer = &proxy.DirectDialer{Resolver: res, Timeout: cfg.Proxy.DialTimeout}
	}

	client := httpclient.NewClient(res, dialer, log)
	client.DialTimeout = cfg.Proxy.DialTimeout
	client.IOTimeout = cfg.Proxy.IOTimeout

	bindings := make([]*urlmap.Binding, 0, len(cfg.Wikis))
	for _, w := range cfg.Wikis {
		maps := make([]urlmap.DomainMap, 0, len(w.Maps))
		for _, m := range w.Maps {
			maps = append(maps, urlmap.DomainMap{WikiDomain: m.WikiDomain, PathPrefix: m.PathPrefix})
		}
		b, err := urlmap.NewBinding(w.ProxyHost, w.PrimaryDomain, maps)
		if err != nil {
			return fmt.Errorf("building binding for %q: %w", w.ProxyHost, err)
		}
		bindings = append(bindings, b)
	}

	gate := admission.New(admission.Config{
		StatusCode: cfg.Auth.StatusCode,
		Retries:    cfg.Auth.Retries,
		WaitTime:   cfg.Auth.WaitTime,
		TTL:        cfg.Auth.TTL,
	})

	orch := proxy.New(bindings, gate, client, log)

	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Info("metrics listening", zap.String("addr", metricsAddr))
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	server := &http.Server{
		Addr:    listenAddr,
		Handler: &listenerAdapter{orch: orch},
	}
	log.Info("listening", zap.String("addr", listenAddr))
	return server.ListenAndServe()
}

// listenerAdapter is a thin net/http front end: it parses the raw
// request into proxy.IncomingRequest and writes back whatever the
// orchestrator returns.
type listenerAdapter struct {
	orch *proxy.Orchestrator
}

func (a *listenerAdapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(io.LimitReader(r.Body, 32<<20))
	defer r.Body.Close()

	headers := httpclient.NewHeaders()
	for name, values := range r.Header {
		for _, v := range values {
			headers.Add(name, v)
		}
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	req := &proxy.IncomingRequest{
		ClientIP:  clientIP(r),
		UserAgent: r.UserAgent(),
		Host:      r.Host,
		Scheme:    scheme,
		Method:    r.Method,
		Path:      r.URL.Path,
		RawQuery:  r.URL.RawQuery,
		Headers:   headers,
		Body:      body,
	}

	resp := a.orch.Handle(req)

	for _, field := range resp.Headers.Iter() {
		for _, v := range field.Values {
			w.Header().Add(field.Name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// first hop only; later entries are appended by intermediaries
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
	}
	return host
}

