package adapter

import (
	"errors"
	"testing"

	"pay-gateway-api/internal/config"
)

func testChannelCfgs() []config.ChannelCfg {
	cfgs := []config.ChannelCfg{
		{Channel: "wechat", Methods: []string{"native", "h5"}, Regions: []string{"CN"}, ApiKey: "k1"},
		{Channel: "alipay", Methods: []string{"qr"}, Regions: []string{"CN"}, ApiKey: "k2"},
		{Channel: "boost", Methods: []string{"wallet"}, Regions: []string{"MY"}, SecretKey: "k3"},
		{Channel: "unknown-psp", Methods: []string{"x"}, Regions: []string{"US"}},
	}
	var root config.Root
	root.Channels = cfgs
	config.ApplyDefaults(&root)
	return root.Channels
}

func TestBuildFromConfig(t *testing.T) {
	r := BuildFromConfig(testChannelCfgs())

	a, err := r.Resolve("wechat", "native", "CN")
	if err != nil {
		t.Fatalf("Resolve wechat: %v", err)
	}
	if a.Name() != "wechat" {
		t.Errorf("Name = %s, want wechat", a.Name())
	}

	// 大小写不敏感
	if _, err := r.Resolve("WeChat", "Native", "cn"); err != nil {
		t.Errorf("case-insensitive resolve failed: %v", err)
	}

	// 未配置的 method/region 组合
	if _, err := r.Resolve("wechat", "native", "MY"); !errors.Is(err, ErrUnsupportedChannel) {
		t.Errorf("err = %v, want ErrUnsupportedChannel", err)
	}
	// 配置里的未知渠道直接跳过
	if _, err := r.Resolve("unknown-psp", "x", "US"); !errors.Is(err, ErrUnsupportedChannel) {
		t.Errorf("err = %v, want ErrUnsupportedChannel", err)
	}
}

func TestResolveChannelForCallback(t *testing.T) {
	r := BuildFromConfig(testChannelCfgs())

	if _, err := r.ResolveChannel("boost"); err != nil {
		t.Fatalf("ResolveChannel boost: %v", err)
	}
	if _, err := r.ResolveChannel("nobody"); !errors.Is(err, ErrUnsupportedChannel) {
		t.Errorf("err = %v, want ErrUnsupportedChannel", err)
	}
}

func TestAckPayloads(t *testing.T) {
	r := BuildFromConfig(testChannelCfgs())

	wechat, _ := r.ResolveChannel("wechat")
	if ct, body := wechat.AckPayload(true); ct != "text/plain" || body != "SUCCESS" {
		t.Errorf("wechat ack = %s %q", ct, body)
	}
	if _, body := wechat.AckPayload(false); body != "FAIL" {
		t.Errorf("wechat nack = %q", body)
	}

	alipay, _ := r.ResolveChannel("alipay")
	if _, body := alipay.AckPayload(true); body != "success" {
		t.Errorf("alipay ack = %q", body)
	}

	boost, _ := r.ResolveChannel("boost")
	if ct, body := boost.AckPayload(false); ct != "application/json" || body != `{"status":"RETRY"}` {
		t.Errorf("boost nack = %s %q", ct, body)
	}
}
