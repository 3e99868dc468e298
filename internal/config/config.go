package config

import (
	"time"

	pkgconfig "github.com/healthverse/care-relay/pkg/config"
	"github.com/healthverse/care-relay/pkg/database"
	pkglog "github.com/healthverse/care-relay/pkg/log"
	"github.com/healthverse/care-relay/pkg/pubsub"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Rooms     RoomsConfig
	Signaling SignalingConfig
	Notes     NotesConfig
	Database  database.Config
	PubSub    pubsub.Config
	Kafka     KafkaConfig
	WebRTC    WebRTCConfig
	CORS      CORSConfig
	Log       pkglog.Config
}

type ServerConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type RoomsConfig struct {
	// MaxMembers caps a call room. 0 disables the cap.
	MaxMembers int `mapstructure:"max_members"`
}

type SignalingConfig struct {
	// NegotiationTimeout bounds invite->accept and
	// renegotiation-needed->done. 0 disables the deadline.
	NegotiationTimeout time.Duration `mapstructure:"negotiation_timeout"`
}

type NotesConfig struct {
	StoreTimeout time.Duration `mapstructure:"store_timeout"`
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    string
	Topic      string
	Partitions int
}

type WebRTCConfig struct {
	ICEServers []ICEServerConfig `mapstructure:"ice_servers"`
	TurnKeyID  string            `mapstructure:"turn_key_id"`
	TurnKey    string            `mapstructure:"turn_key"`
	TurnTTL    time.Duration     `mapstructure:"turn_ttl"`
}

type ICEServerConfig struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 4000)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("rooms.max_members", 2)
	v.SetDefault("signaling.negotiation_timeout", "30s")
	v.SetDefault("notes.store_timeout", "10s")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "healthverse")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/records.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("pubsub.driver", "none")
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.redis.password", "")
	v.SetDefault("pubsub.redis.db", 0)
	v.SetDefault("pubsub.redis.pool_size", 10)
	v.SetDefault("pubsub.redis.read_timeout", "3s")
	v.SetDefault("pubsub.redis.write_timeout", "3s")
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.partitions", 4)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "call-events")
	v.SetDefault("kafka.partitions", 4)
	v.SetDefault("webrtc.turn_ttl", "24h")
	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.service_name", "relay-service")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.file_path", "DB_FILE_PATH")
	v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	v.BindEnv("pubsub.redis.address", "REDIS_ADDRESS")
	v.BindEnv("pubsub.redis.password", "REDIS_PASSWORD")
	v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.enabled", "KAFKA_CALL_EVENTS_ENABLED")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_CALL_EVENTS_TOPIC")
	v.BindEnv("webrtc.turn_key_id", "CF_TURN_ID")
	v.BindEnv("webrtc.turn_key", "CF_TURN_KEY")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.Signaling.NegotiationTimeout = pkgconfig.Duration(v, "signaling.negotiation_timeout", 30*time.Second)
	cfg.Notes.StoreTimeout = pkgconfig.Duration(v, "notes.store_timeout", 10*time.Second)
	cfg.WebRTC.TurnTTL = pkgconfig.Duration(v, "webrtc.turn_ttl", 24*time.Hour)

	return &cfg, nil
}
