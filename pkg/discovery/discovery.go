package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/example/storefront/pkg/config"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const defaultLeaseTTL = 30

type ServiceDiscovery struct {
	client *clientv3.Client
	config *config.EtcdConfig
	logger *zap.Logger
}

type ServiceInstance struct {
	Name string
	Host string
	Port int
}

func (i *ServiceInstance) Addr() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

func NewServiceDiscovery(cfg *config.EtcdConfig, logger *zap.Logger) (*ServiceDiscovery, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &ServiceDiscovery{
		client: cli,
		config: cfg,
		logger: logger,
	}, nil
}

func instanceKey(prefix string, instance *ServiceInstance) string {
	return servicePrefix(prefix, instance.Name) + instance.Addr()
}

func servicePrefix(prefix, name string) string {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + name + "/"
}

// Register publishes instance under a lease that is kept alive until ctx ends.
func (sd *ServiceDiscovery) Register(ctx context.Context, instance *ServiceInstance) error {
	ttl := sd.config.LeaseTTL
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	lease, err := sd.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	key := instanceKey(sd.config.Prefix, instance)
	if _, err := sd.client.Put(ctx, key, instance.Addr(), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	ch, err := sd.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("failed to keep alive: %w", err)
	}

	go func() {
		for range ch {
		}
		sd.logger.Info("Service lease keep-alive stopped", zap.String("key", key))
	}()

	sd.logger.Info("Service registered", zap.String("key", key), zap.Int64("ttl", ttl))
	return nil
}

func (sd *ServiceDiscovery) Discover(ctx context.Context, serviceName string) ([]*ServiceInstance, error) {
	resp, err := sd.client.Get(ctx, servicePrefix(sd.config.Prefix, serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to discover service: %w", err)
	}

	instances := make([]*ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		instance, err := parseInstance(serviceName, string(kv.Value))
		if err != nil {
			sd.logger.Warn("Skipping malformed service entry", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

func parseInstance(name, addr string) (*ServiceInstance, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q", port)
	}
	return &ServiceInstance{Name: name, Host: host, Port: p}, nil
}

func (sd *ServiceDiscovery) Deregister(ctx context.Context, instance *ServiceInstance) error {
	if _, err := sd.client.Delete(ctx, instanceKey(sd.config.Prefix, instance)); err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}
	return nil
}

func (sd *ServiceDiscovery) Close() error {
	return sd.client.Close()
}
