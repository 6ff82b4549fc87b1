package gather

import (
	"errors"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

// sessionSettled is the ET wall-clock time after which a day's bars are final.
const sessionSettledHour, sessionSettledMinute = 20, 5

// LatestFinishedTradingDay returns the most recent trading day whose market
// session has ended (i.e. after 20:05 ET to account for extended hours data
// settling). It uses the Alpaca trading calendar API.
func LatestFinishedTradingDay(apiKey, apiSecret, baseURL string) (time.Time, error) {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})

	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.Time{}, fmt.Errorf("loading ET timezone: %w", err)
	}

	now := time.Now().In(et)
	calendar, err := client.GetCalendar(alpaca.GetCalendarRequest{
		Start: now.AddDate(0, 0, -7),
		End:   now,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("GetCalendar: %w", err)
	}

	days := make([]string, len(calendar))
	for i, d := range calendar {
		days[i] = d.Date
	}
	return latestFinished(days, now)
}

// latestFinished picks the last settled day out of calendar dates
// ("2006-01-02", ascending). now must be in ET. The result is UTC midnight.
func latestFinished(days []string, now time.Time) (time.Time, error) {
	if len(days) == 0 {
		return time.Time{}, errors.New("no trading days returned from calendar")
	}

	today := now.Format(time.DateOnly)
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), sessionSettledHour, sessionSettledMinute, 0, 0, now.Location())

	for i := len(days) - 1; i >= 0; i-- {
		if days[i] == today && !now.After(cutoff) {
			continue
		}
		if days[i] > today {
			continue
		}
		t, err := time.Parse(time.DateOnly, days[i])
		if err != nil {
			continue
		}
		return t, nil
	}

	return time.Time{}, errors.New("could not determine latest finished trading day")
}
