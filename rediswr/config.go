package rediswr

import "time"

// Config defines the configuration options for Redis connections.
type Config struct {
	// Addrs is the list of Redis server addresses in the format "host:port,host2:port2".
	// Connect rejects an empty list.
	Addrs string `yaml:"addrs"`

	// Username is the username for the Redis server/cluster.
	Username string `yaml:"username"`

	// Password is the password for the Redis server/cluster.
	Password string `yaml:"password" mask:"true"`

	// DB selects the logical database. Ignored in cluster mode.
	DB int `yaml:"db" default:"0"`

	// IsClusterMode indicates whether the Redis server is a Redis cluster.
	IsClusterMode bool `yaml:"is_cluster_mode"`

	DialTimeout  time.Duration `yaml:"dial_timeout"  default:"3s"`
	ReadTimeout  time.Duration `yaml:"read_timeout"  default:"1s"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"1s"`
}
