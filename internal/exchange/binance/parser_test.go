// Package binance Binance 解析器测试
package binance

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestParseKlines(t *testing.T) {
	data := []byte(`[
		[1704067200000,"42283.58","42554.57","42261.02","42475.23","1271.68108",1704070799999,"53957248.98",47134,"682.57581","28957416.82","0"],
		[1704070800000,"42475.23","42775.00","42431.65","42613.56","1196.37856",1704074399999,"50984893.04",44277,"630.28227","26862549.59","0"]
	]`)
	got, err := ParseKlines(data)
	if err != nil {
		t.Fatalf("ParseKlines() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	c := got[0]
	if c.OpenTime.UnixMilli() != 1704067200000 || c.CloseTime.UnixMilli() != 1704070799999 {
		t.Errorf("时间 = %v / %v", c.OpenTime, c.CloseTime)
	}
	if c.Open != 42283.58 || c.High != 42554.57 || c.Low != 42261.02 || c.Close != 42475.23 || c.Volume != 1271.68108 {
		t.Errorf("OHLCV = %+v", c)
	}
	if got[1].Close != 42613.56 {
		t.Errorf("第二根收盘价 = %v", got[1].Close)
	}
}

func TestParseKlines_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"非数组", `{"code":-1121}`},
		{"字段不足", `[[1704067200000,"1","1","1","1"]]`},
		{"价格非法", `[[1704067200000,"x","1","1","1","1",1704070799999]]`},
		{"时间非法", `[["a","1","1","1","1","1",1704070799999]]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseKlines([]byte(tt.data)); err == nil {
				t.Error("应返回错误")
			}
		})
	}
}

// TestParseKlineEvent_RoundTrip 推送消息保留价格与收盘标记
func TestParseKlineEvent_RoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("解析保留价格和时间", prop.ForAll(
		func(open, closePx float64, ts int64, closed bool) bool {
			msg := fmt.Sprintf(`{"e":"kline","E":%d,"s":"BTCUSDT","k":{"t":%d,"T":%d,"s":"BTCUSDT","i":"1m","o":"%.2f","c":"%.2f","h":"%.2f","l":"%.2f","v":"1.5","x":%t}}`,
				ts+60000, ts, ts+59999, open, closePx, open+closePx, 1.0, closed)
			c, gotClosed, err := ParseKlineEvent([]byte(msg))
			if err != nil || c == nil || gotClosed != closed {
				return false
			}
			if c.OpenTime.UnixMilli() != ts || c.CloseTime.UnixMilli() != ts+59999 {
				return false
			}
			diff := c.Open - open
			return diff < 0.01 && diff > -0.01 && c.Volume == 1.5
		},
		gen.Float64Range(10000, 100000),
		gen.Float64Range(10000, 100000),
		gen.Int64Range(1700000000000, 1800000000000),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestParseKlineEvent_NonKline(t *testing.T) {
	c, closed, err := ParseKlineEvent([]byte(`{"result":null,"id":1}`))
	if err != nil || c != nil || closed {
		t.Errorf("非 kline 消息应被忽略: %v %v %v", c, closed, err)
	}
	if _, _, err := ParseKlineEvent([]byte(`not json`)); err == nil {
		t.Error("非法 JSON 应返回错误")
	}
}
