//go:build integration

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type RedisIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container testcontainers.Container
	cache     *Redis
}

func (s *RedisIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	s.Require().NoError(err)
	s.container = container

	host, err := container.Host(s.ctx)
	s.Require().NoError(err)
	port, err := container.MappedPort(s.ctx, "6379")
	s.Require().NoError(err)

	c, err := NewRedisFromURL(fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	s.Require().NoError(err)
	s.Require().NoError(c.Ping(s.ctx))
	s.cache = c
}

func (s *RedisIntegrationSuite) TearDownSuite() {
	if s.cache != nil {
		_ = s.cache.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRedisIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RedisIntegrationSuite))
}

func (s *RedisIntegrationSuite) TestSetGet() {
	s.NoError(s.cache.Set(s.ctx, "podcast:thmanyah", []byte(`{"n":1}`), time.Minute))

	data, found, err := s.cache.Get(s.ctx, "podcast:thmanyah")
	s.NoError(err)
	s.True(found)
	s.Equal(`{"n":1}`, string(data))
}

func (s *RedisIntegrationSuite) TestMissing() {
	_, found, err := s.cache.Get(s.ctx, "never-set")
	s.NoError(err)
	s.False(found)
}

func (s *RedisIntegrationSuite) TestDelete() {
	s.NoError(s.cache.Set(s.ctx, "gone", []byte("x"), time.Minute))
	s.NoError(s.cache.Delete(s.ctx, "gone"))

	_, found, err := s.cache.Get(s.ctx, "gone")
	s.NoError(err)
	s.False(found)
}
