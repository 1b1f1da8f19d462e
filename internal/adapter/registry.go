package adapter

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"pay-gateway-api/internal/config"
)

var ErrUnsupportedChannel = errors.New("unsupported channel")

type routeKey struct {
	channel string
	method  string
	region  string
}

// Registry (channel, method, region) → ChannelAdapter。
// 进程启动时静态注册，之后只读，不支持运行期增删
type Registry struct {
	routes    map[routeKey]ChannelAdapter
	byChannel map[string]ChannelAdapter
}

func NewRegistry() *Registry {
	return &Registry{
		routes:    make(map[routeKey]ChannelAdapter),
		byChannel: make(map[string]ChannelAdapter),
	}
}

func (r *Registry) Register(channel string, methods, regions []string, a ChannelAdapter) {
	channel = strings.ToLower(channel)
	for _, m := range methods {
		for _, g := range regions {
			r.routes[routeKey{channel, strings.ToLower(m), strings.ToUpper(g)}] = a
		}
	}
	r.byChannel[channel] = a
}

// Resolve 路由 miss 返回 ErrUnsupportedChannel
func (r *Registry) Resolve(channel, method, region string) (ChannelAdapter, error) {
	k := routeKey{strings.ToLower(channel), strings.ToLower(method), strings.ToUpper(region)}
	if a, ok := r.routes[k]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s/%s/%s", ErrUnsupportedChannel, channel, method, region)
}

// ResolveChannel 回调入口只声明渠道，不带 method/region
func (r *Registry) ResolveChannel(channel string) (ChannelAdapter, error) {
	if a, ok := r.byChannel[strings.ToLower(channel)]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedChannel, channel)
}

// BuildFromConfig 按配置表装配注册表
func BuildFromConfig(cfgs []config.ChannelCfg) *Registry {
	r := NewRegistry()
	for i := range cfgs {
		c := cfgs[i]
		var a ChannelAdapter
		switch strings.ToLower(c.Channel) {
		case "wechat":
			a = NewWechatAdapter(c)
		case "alipay":
			a = NewAlipayAdapter(c)
		case "boost":
			a = NewBoostAdapter(c)
		default:
			log.Printf("[Registry] unknown channel in config, skipped: %s", c.Channel)
			continue
		}
		r.Register(c.Channel, c.Methods, c.Regions, a)
		log.Printf("[Registry] registered channel=%s methods=%v regions=%v", c.Channel, c.Methods, c.Regions)
	}
	return r
}
