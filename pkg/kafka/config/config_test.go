package kafka_config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Enabled() {
		t.Error("no brokers configured, expected publishing disabled")
	}
	if cfg.BookingEventsTopic != DefaultBookingEventsTopic {
		t.Errorf("BookingEventsTopic = %s", cfg.BookingEventsTopic)
	}
}

func TestLoad_Brokers(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, " kafka-1:9092, kafka-2:9092 ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Brokers) != 2 || cfg.Brokers[0] != "kafka-1:9092" || cfg.Brokers[1] != "kafka-2:9092" {
		t.Errorf("Brokers = %v", cfg.Brokers)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"bad compression", func(c *Config) { c.ProducerCompression = "brotli" }, true},
		{"bad acks", func(c *Config) { c.ProducerRequireAcks = 2 }, true},
		{"bad offset", func(c *Config) { c.ConsumerStartOffset = 5 }, true},
		{"empty topic", func(c *Config) { c.BookingEventsTopic = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Brokers:              []string{"localhost:9092"},
				ProducerMaxAttempts:  1,
				ProducerBatchTimeout: DefaultProducerBatchTimeout,
				ProducerRequireAcks:  -1,
				ProducerCompression:  "snappy",
				ConsumerStartOffset:  -2,
				BookingEventsTopic:   "events",
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
