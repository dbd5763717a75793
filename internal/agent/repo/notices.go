package repo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"github.com/lh-counsel/server/internal/agent/model"
	errx "github.com/lh-counsel/server/internal/core/error"
	logx "github.com/lh-counsel/server/pkg/logger"
)

// Fixed filters of the lease notice search: rental housing notices that are open.
const (
	noticeUpperTypeRental = "06"
	noticeStatusOpen      = "공고중"
	maxNoticeBodyBytes    = 8 << 20
)

// NoticeClient lists open lease notices from the LH public data API.
type NoticeClient struct {
	httpClient *http.Client
	baseURL    string
	serviceKey string
	pageSize   int
}

func NewNoticeClient(cfg model.NoticeAPIConfig) (*NoticeClient, error) {
	timeout := 10 * time.Second
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid notice api timeout %q: %w", cfg.Timeout, err)
		}
		timeout = d
	}
	if _, err := url.Parse(cfg.URL); err != nil || cfg.URL == "" {
		return nil, fmt.Errorf("invalid notice api url %q", cfg.URL)
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &NoticeClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.URL,
		serviceKey: cfg.ServiceKey,
		pageSize:   pageSize,
	}, nil
}

// FindOpenNotices returns open notices whose housing type is among houseIDs,
// scoped to regionCode when it is non-empty.
func (c *NoticeClient) FindOpenNotices(ctx context.Context, houseIDs []string, regionCode string) ([]model.Notice, error) {
	params := url.Values{}
	params.Set("serviceKey", c.serviceKey)
	params.Set("PG_SZ", strconv.Itoa(c.pageSize))
	params.Set("PAGE", "1")
	params.Set("UPP_AIS_TP_CD", noticeUpperTypeRental)
	params.Set("PAN_SS", noticeStatusOpen)
	params.Set("_type", "json")
	if regionCode != "" {
		params.Set("CNP_CD", regionCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build notice request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logx.Error().Err(err).Msg("notice api request failed")
		return nil, errx.WrapUpstream(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxNoticeBodyBytes))
	if err != nil {
		return nil, errx.WrapUpstream(fmt.Errorf("read notice response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		logx.Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("notice api returned non-200")
		return nil, errx.WrapUpstream(fmt.Errorf("notice api status %d", resp.StatusCode))
	}

	notices, err := parseNotices(body, houseIDs)
	if err != nil {
		logx.Error().Err(err).Msg("notice api returned an undecodable body")
		return nil, errx.WrapUpstream(err)
	}
	logx.Debug().Strs("house_ids", houseIDs).Str("region_code", regionCode).Int("notices", len(notices)).Msg("Open notices fetched")
	return notices, nil
}

// parseNotices accepts the API's array-of-blocks body (or an object of blocks)
// and keeps the dsList items whose AIS_TP_CD is one of houseIDs.
func parseNotices(body []byte, houseIDs []string) ([]model.Notice, error) {
	var root any
	if err := sonic.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("decode notice response: %w", err)
	}

	wanted := make(map[string]struct{}, len(houseIDs))
	for _, id := range houseIDs {
		wanted[id] = struct{}{}
	}

	var blocks []any
	switch v := root.(type) {
	case []any:
		blocks = v
	case map[string]any:
		for _, b := range v {
			blocks = append(blocks, b)
		}
	default:
		return nil, fmt.Errorf("unexpected notice response shape %T", root)
	}

	notices := []model.Notice{}
	for _, b := range blocks {
		block, ok := b.(map[string]any)
		if !ok {
			continue
		}
		items, _ := block["dsList"].([]any)
		for _, it := range items {
			item, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if _, ok := wanted[stringify(item["AIS_TP_CD"])]; !ok {
				continue
			}
			notices = append(notices, model.Notice{
				ID:   stringify(item["PAN_ID"]),
				Name: stringify(item["PAN_NM"]),
			})
		}
	}
	return notices, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

var _ model.NoticeFinder = (*NoticeClient)(nil)
