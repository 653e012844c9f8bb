package biz

import (
	"context"
	stderrors "errors"
	"net"
	"net/url"
	"syscall"

	"github.com/go-kratos/kratos/v2/errors"

	"github.com/ctrevinoi1/forensic-locator/app/forensic/pkg/model"
)

// 错误信封中的 error 字段取值
const (
	KindMissingParameters = "Missing required parameters"
	KindInvalidParameters = "Invalid parameters"
	KindAuthConfiguration = "Auth configuration error"
	KindAuthFailed        = "Authentication failed"
	KindSearchFailed      = "Satellite search failed"
	KindThumbnailFailed   = "Thumbnail fetch failed"
)

// NetworkHint DNS 或连接失败时放入 details 的提示
const NetworkHint = "Unable to reach the Copernicus Data Space servers. Check your internet connection and DNS settings."

// MetadataDetails 错误元数据中 details 的键
const MetadataDetails = "details"

// IsNetworkError 判断是否为 DNS 解析或连接层面的失败
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var dnsErr *net.DNSError
	if stderrors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if stderrors.As(err, &opErr) {
		return true
	}
	if stderrors.Is(err, syscall.ECONNREFUSED) || stderrors.Is(err, syscall.ECONNRESET) ||
		stderrors.Is(err, syscall.ETIMEDOUT) || stderrors.Is(err, syscall.EHOSTUNREACH) ||
		stderrors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var urlErr *url.Error
	if stderrors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	return stderrors.Is(err, context.DeadlineExceeded)
}

// upstreamError 把上游失败转为 500 信封；凭据缺失单独归类
func upstreamError(kind string, err error) *errors.Error {
	if stderrors.Is(err, model.ErrAuthConfiguration) {
		kind = KindAuthConfiguration
	}
	msg := err.Error()
	details := msg
	if IsNetworkError(err) {
		details = NetworkHint
	}
	return errors.InternalServer(kind, msg).WithMetadata(map[string]string{MetadataDetails: details})
}
