// Package chain 提供链上支付的关联与观测
package chain

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// 备注格式: MANH|{invoice_id}|{sig16}
// 备注是链上支付与账单之间唯一的关联机制，付款钱包不作身份识别
const memoPrefix = "MANH"

// MemoSigner 支付备注签名器
type MemoSigner struct {
	secret []byte
}

// NewMemoSigner 创建签名器
func NewMemoSigner(secret string) *MemoSigner {
	return &MemoSigner{secret: []byte(secret)}
}

// Sign 计算签名: HMAC-SHA256(id|account|source_amount|expiry) 的前 16 个十六进制字符
func (s *MemoSigner) Sign(invoiceID string, accountID int64, sourceAmount decimal.Decimal, expiresAt time.Time) string {
	payload := fmt.Sprintf("%s|%d|%s|%s",
		invoiceID, accountID, sourceAmount.String(), expiresAt.UTC().Format(time.RFC3339))
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))[:16]
}

// BuildMemo 构造支付备注
func (s *MemoSigner) BuildMemo(invoiceID string, accountID int64, sourceAmount decimal.Decimal, expiresAt time.Time) string {
	return fmt.Sprintf("%s|%s|%s", memoPrefix, invoiceID, s.Sign(invoiceID, accountID, sourceAmount, expiresAt))
}

// Verify 重算签名并常数时间比较
func (s *MemoSigner) Verify(memo string, accountID int64, sourceAmount decimal.Decimal, expiresAt time.Time) bool {
	invoiceID, sig, ok := ParseMemo(memo)
	if !ok {
		return false
	}
	expected := s.Sign(invoiceID, accountID, sourceAmount, expiresAt)
	return hmac.Equal([]byte(sig), []byte(expected))
}

// ParseMemo 解析支付备注
func ParseMemo(memo string) (invoiceID, sig string, ok bool) {
	parts := strings.Split(strings.TrimSpace(memo), "|")
	if len(parts) != 3 || parts[0] != memoPrefix || parts[1] == "" || len(parts[2]) != 16 {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// NewInvoiceID 生成账单 ID: sha256(account|now|random) 的前 24 个十六进制字符
func NewInvoiceID(accountID int64, now time.Time) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%d|%x", accountID, now.UnixNano(), nonce)))
	return hex.EncodeToString(sum[:])[:24], nil
}
