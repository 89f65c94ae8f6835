package store

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"
)

const orderNumberAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewOrderNumber 生成订单号：ORD + 毫秒时间戳 + 6 位随机大写 base36 字符。
// 同一毫秒内的碰撞概率约为 36^-6。
func NewOrderNumber(now time.Time) string {
	buf := make([]byte, 0, 3+13+6)
	buf = append(buf, "ORD"...)
	buf = strconv.AppendInt(buf, now.UnixMilli(), 10)

	max := big.NewInt(int64(len(orderNumberAlphabet)))
	for i := 0; i < 6; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// 系统熵源不可用时退化为纳秒位
			n = big.NewInt((now.UnixNano() >> (i * 5)) % int64(len(orderNumberAlphabet)))
		}
		buf = append(buf, orderNumberAlphabet[n.Int64()])
	}
	return string(buf)
}
