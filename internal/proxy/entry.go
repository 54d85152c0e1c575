package proxy

import (
	"net/url"
	"time"
)

// Entry 代理条目
type Entry struct {
	Address          string // host:port
	Scheme           string // http, https, socks5
	Username         string
	Password         string
	Healthy          bool
	Failures         int // 连续失败次数
	Successes        int64
	QuarantinedUntil time.Time
	LastUsed         time.Time
}

// URL 带认证信息的代理地址
func (e *Entry) URL() string {
	u := url.URL{Scheme: e.Scheme, Host: e.Address}
	if e.Username != "" {
		u.User = url.UserPassword(e.Username, e.Password)
	}
	return u.String()
}

// Masked 隐藏认证信息, 用于日志和统计
func (e *Entry) Masked() string {
	if e.Username != "" {
		return e.Scheme + "://***:***@" + e.Address
	}
	return e.Scheme + "://" + e.Address
}

// key 池内唯一标识
func (e *Entry) key() string {
	return e.Scheme + "://" + e.Username + "@" + e.Address
}
