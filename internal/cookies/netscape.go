package cookies

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	header         = "# Netscape HTTP Cookie File"
	httpOnlyPrefix = "#HttpOnly_"
)

// Cookie Netscape cookie 文件中的一行
type Cookie struct {
	Domain            string
	IncludeSubdomains bool
	Path              string
	Secure            bool
	Expires           int64 // unix秒, 0 表示会话cookie
	Name              string
	Value             string
	HTTPOnly          bool
}

// Parse 解析 Netscape 格式, 跳过注释和字段不足的行
func Parse(r io.Reader) ([]Cookie, error) {
	var out []Cookie
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			line = strings.TrimPrefix(line, httpOnlyPrefix)
			httpOnly = true
		} else if strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		expires, _ := strconv.ParseInt(fields[4], 10, 64)
		out = append(out, Cookie{
			Domain:            fields[0],
			IncludeSubdomains: strings.EqualFold(fields[1], "TRUE"),
			Path:              fields[2],
			Secure:            strings.EqualFold(fields[3], "TRUE"),
			Expires:           expires,
			Name:              fields[5],
			Value:             strings.Join(fields[6:], "\t"),
			HTTPOnly:          httpOnly,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	return out, nil
}

// LoadFile 读取 cookie 文件
func LoadFile(path string) ([]Cookie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// ToMap 取出属于 domain (含子域) 且未过期的 cookie, domain 为空时不过滤
func ToMap(cookies []Cookie, domain string, now time.Time) map[string]string {
	domain = strings.TrimPrefix(strings.ToLower(domain), ".")
	out := make(map[string]string)
	for _, c := range cookies {
		if c.Expires > 0 && c.Expires < now.Unix() {
			continue
		}
		if domain != "" && !matchDomain(c.Domain, domain) {
			continue
		}
		out[c.Name] = c.Value
	}
	return out
}

func matchDomain(cookieDomain, domain string) bool {
	cd := strings.TrimPrefix(strings.ToLower(cookieDomain), ".")
	return cd == domain || strings.HasSuffix(cd, "."+domain)
}

// Merge 合并cookie, overrides 中的同名值优先
func Merge(defaults, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Write 以 Netscape 格式写出, 按名称排序
func Write(w io.Writer, cookies map[string]string, domain string) error {
	if !strings.HasPrefix(domain, ".") {
		domain = "." + domain
	}
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, header)
	for _, name := range names {
		fmt.Fprintf(bw, "%s\tTRUE\t/\tTRUE\t0\t%s\t%s\n", domain, name, cookies[name])
	}
	return bw.Flush()
}

// WriteTempFile 写入临时文件, 调用方负责执行 cleanup
func WriteTempFile(cookies map[string]string, domain string) (string, func(), error) {
	f, err := os.CreateTemp("", "cookies-*.txt")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.Remove(f.Name()) }

	if err := Write(f, cookies, domain); err != nil {
		f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return f.Name(), cleanup, nil
}
