package discovery

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"unicode/utf8"

	"github.com/enbility/zeroconf/v3"
)

const (
	// ServiceType is the DNS-SD service type for Web Things.
	ServiceType = "_webthing._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// maxInstanceNameLen is the DNS label limit for instance names.
	maxInstanceNameLen = 63
)

var (
	// ErrInvalidPort is returned when the advertised port is not 1-65535.
	ErrInvalidPort = errors.New("discovery: invalid port")

	// ErrNoInstance is returned when no instance name can be derived.
	ErrNoInstance = errors.New("discovery: instance name is required")
)

// Logger defines the logging interface used by the advertiser.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Options configures an Advertiser.
type Options struct {
	// Instance is the advertised service instance name, usually the thing title.
	Instance string

	// Port is the thing server's listening port.
	Port int

	// Path is the thing description path, published as the path TXT record.
	// Defaults to "/".
	Path string

	// TLS adds the tls=1 TXT record.
	TLS bool

	// Interface restricts advertising to one network interface. Empty means all.
	Interface string

	// TTL is the record TTL in seconds. Zero keeps the zeroconf default.
	TTL int

	// Logger is optional. Defaults to a no-op logger.
	Logger Logger
}

// shutdowner is the part of *zeroconf.Server the advertiser keeps.
type shutdowner interface {
	Shutdown()
}

type registerFunc func(instance, service, domain string, port int, txt []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (shutdowner, error)

func zeroconfRegister(instance, service, domain string, port int, txt []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (shutdowner, error) {
	server, err := zeroconf.Register(instance, service, domain, port, txt, ifaces, opts...)
	if err != nil {
		return nil, err
	}
	return server, nil
}

// Advertiser publishes one _webthing._tcp service record.
//
// Thread Safety:
//   - Start and Stop are safe for concurrent use.
type Advertiser struct {
	instance string
	port     int
	txt      []string
	iface    string
	ttl      int
	logger   Logger
	register registerFunc

	mu     sync.Mutex
	server shutdowner
}

// New validates opts and creates an Advertiser. Nothing is sent until Start.
func New(opts Options) (*Advertiser, error) {
	if opts.Port < 1 || opts.Port > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, opts.Port)
	}
	if opts.Instance == "" {
		return nil, ErrNoInstance
	}

	instance := truncateLabel(opts.Instance, maxInstanceNameLen)

	path := opts.Path
	if path == "" {
		path = "/"
	}
	txt := []string{"path=" + path}
	if opts.TLS {
		txt = append(txt, "tls=1")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Advertiser{
		instance: instance,
		port:     opts.Port,
		txt:      txt,
		iface:    opts.Interface,
		ttl:      opts.TTL,
		logger:   logger,
		register: zeroconfRegister,
	}, nil
}

// TXT returns the TXT records that will be advertised.
func (a *Advertiser) TXT() []string {
	return append([]string(nil), a.txt...)
}

// Instance returns the advertised instance name.
func (a *Advertiser) Instance() string {
	return a.instance
}

// Start registers the service. Calling Start again re-registers it.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if a.ttl > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.ttl)))
	}

	server, err := a.register(a.instance, ServiceType, Domain, a.port, a.txt, a.interfaces(), opts...)
	if err != nil {
		return fmt.Errorf("register %s service: %w", ServiceType, err)
	}
	a.server = server

	a.logger.Info("mdns service advertised",
		"instance", a.instance,
		"service", ServiceType,
		"port", a.port,
	)
	return nil
}

// Stop withdraws the service. Safe to call when not started.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	a.logger.Info("mdns service withdrawn", "instance", a.instance)
}

// interfaces returns the configured interface, or nil for all of them.
func (a *Advertiser) interfaces() []net.Interface {
	if a.iface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.iface)
	if err != nil {
		a.logger.Warn("mdns interface not found, advertising on all interfaces",
			"interface", a.iface,
			"error", err,
		)
		return nil
	}
	return []net.Interface{*iface}
}

// truncateLabel cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncateLabel(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
