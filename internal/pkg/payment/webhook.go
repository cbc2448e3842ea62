package payment

import (
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/webhook"
)

// VerifyEvent 对原始报文做 HMAC 验签并解析为事件。签名基于未解析的
// 字节计算，缺头、篡改、过期一律返回错误，调用方不得做任何写操作。
func VerifyEvent(payload []byte, sigHeader, secret string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, secret)
}
