package config

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"

	"uniactor/logutil"
	"uniactor/mailbox"
)

var (
	// ErrConfigUnknownItem 配置文件包含无法识别的键。
	ErrConfigUnknownItem = errors.Normalize(
		"config file %s contained unknown configuration options: %s",
		errors.RFCCodeText("UNIACTOR:ErrConfigUnknownItem"),
	)
	// ErrConfigInvalid 配置项取值非法。
	ErrConfigInvalid = errors.Normalize(
		"invalid config %s: %s",
		errors.RFCCodeText("UNIACTOR:ErrConfigInvalid"),
	)
)

// Duration 是可以用 "1s"、"250ms" 这样的字符串写在 TOML 中的时长。
type Duration time.Duration

// UnmarshalText 实现 encoding.TextUnmarshaler。
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Trace(err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText 实现 encoding.TextMarshaler。
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config 是一个 Actor 系统的全部配置。
type Config struct {
	// PersistDir 非空时为每个 Actor 打开 WAL
	PersistDir string          `toml:"persist-dir" json:"persist-dir"`
	Log        *logutil.Config `toml:"log" json:"log"`
	Mailbox    MailboxConfig   `toml:"mailbox" json:"mailbox"`
	Remote     RemoteConfig    `toml:"remote" json:"remote"`
	Metrics    MetricsConfig   `toml:"metrics" json:"metrics"`
	RateLimit  RateLimitConfig `toml:"rate-limit" json:"rate-limit"`
}

// MailboxConfig 是新建 Actor 的默认邮箱配置。
type MailboxConfig struct {
	Capacity       uint64 `toml:"capacity" json:"capacity"`
	UrgentCapacity uint64 `toml:"urgent-capacity" json:"urgent-capacity"`
	MaxSegments    uint64 `toml:"max-segments" json:"max-segments"`
	// Policy 取 expand、block 或 drop-newest
	Policy string `toml:"policy" json:"policy"`
}

// RemoteConfig 配置跨节点投递。ListenAddr 为空时不启用。
type RemoteConfig struct {
	ListenAddr       string   `toml:"listen-addr" json:"listen-addr"`
	DeliverTimeout   Duration `toml:"deliver-timeout" json:"deliver-timeout"`
	BreakerThreshold uint64   `toml:"breaker-threshold" json:"breaker-threshold"`
	BreakerOpenFor   Duration `toml:"breaker-open-for" json:"breaker-open-for"`
}

// MetricsConfig 配置指标服务。Addr 为空时不启动 HTTP 服务。
type MetricsConfig struct {
	Addr string `toml:"addr" json:"addr"`
}

// RateLimitConfig 限制出站投递速率。QPS 为 0 表示不限流。
type RateLimitConfig struct {
	QPS   float64 `toml:"qps" json:"qps"`
	Burst int     `toml:"burst" json:"burst"`
}

var policies = map[string]mailbox.BackpressurePolicy{
	"expand":      mailbox.BackpressureExpand,
	"block":       mailbox.BackpressureBlock,
	"drop-newest": mailbox.BackpressureDropNewest,
}

// Options 把配置转换为邮箱选项，调用前应先 Adjust。
func (c MailboxConfig) Options() mailbox.Options {
	return mailbox.Options{
		Capacity:       c.Capacity,
		UrgentCapacity: c.UrgentCapacity,
		MaxSegments:    c.MaxSegments,
		Policy:         policies[c.Policy],
	}
}

// Default 返回默认配置。
func Default() *Config {
	return &Config{
		Log: logutil.DefaultConfig(),
		Mailbox: MailboxConfig{
			Capacity:       65536,
			UrgentCapacity: 1024,
			MaxSegments:    8,
			Policy:         "expand",
		},
		Remote: RemoteConfig{
			DeliverTimeout:   Duration(5 * time.Second),
			BreakerThreshold: 50,
			BreakerOpenFor:   Duration(30 * time.Second),
		},
	}
}

// Load 从 path 读取 TOML 配置，未出现的项保留默认值，未知的键视为错误。
func Load(path string) (*Config, error) {
	c := Default()
	metaData, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := checkUndecodedItems(path, metaData); err != nil {
		return nil, err
	}
	if err := c.Adjust(); err != nil {
		return nil, err
	}
	return c, nil
}

func checkUndecodedItems(path string, metaData toml.MetaData) error {
	undecoded := metaData.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}
	items := make([]string, 0, len(undecoded))
	for _, item := range undecoded {
		items = append(items, item.String())
	}
	return ErrConfigUnknownItem.GenWithStackByArgs(path, strings.Join(items, ", "))
}

// Adjust 补全默认值并校验。
func (c *Config) Adjust() error {
	if c.Log == nil {
		c.Log = logutil.DefaultConfig()
	}
	if err := c.Log.Adjust(); err != nil {
		return err
	}
	if c.Mailbox.Policy == "" {
		c.Mailbox.Policy = "expand"
	}
	if _, ok := policies[c.Mailbox.Policy]; !ok {
		return ErrConfigInvalid.GenWithStackByArgs("mailbox.policy", c.Mailbox.Policy)
	}
	if c.Remote.DeliverTimeout < 0 {
		return ErrConfigInvalid.GenWithStackByArgs("remote.deliver-timeout", "must not be negative")
	}
	if c.Remote.DeliverTimeout == 0 {
		c.Remote.DeliverTimeout = Duration(5 * time.Second)
	}
	if c.Remote.BreakerOpenFor < 0 {
		return ErrConfigInvalid.GenWithStackByArgs("remote.breaker-open-for", "must not be negative")
	}
	if c.RateLimit.QPS < 0 {
		return ErrConfigInvalid.GenWithStackByArgs("rate-limit.qps", "must not be negative")
	}
	if c.RateLimit.QPS > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = int(c.RateLimit.QPS)
		if c.RateLimit.Burst < 1 {
			c.RateLimit.Burst = 1
		}
	}
	return nil
}
