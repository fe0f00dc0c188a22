package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quotePage = `<html><body>
<table>
  <tr><td><span>Previous Close</span></td><td><span>132.05</span></td></tr>
  <tr><td><span>Open</span></td><td><span>133.52</span></td></tr>
</table>
<table>
  <tr><td><span>Market Cap</span></td><td><span>2.228T</span></td></tr>
  <tr><td><span>Earnings Date</span></td><td><span>Jan 27, 2021</span> - <span>Feb 01, 2021</span></td></tr>
</table>
<table>
  <tr><td>Ignored</td><td>1</td></tr>
</table>
</body></html>`

const statisticsPage = `<html><body><div id="Main">
<section data-test="qsp-statistics">
  <div>
    <div><h3><span>Stock Price History</span></h3></div>
    <div><table>
      <tr><td><span>Beta (5Y Monthly)</span></td><td>1.27</td></tr>
      <tr><td><span>52-Week Change</span> <sup>3</sup></td><td>76.20%</td></tr>
    </table></div>
  </div>
  <div>
    <div><h3><span>Profitability</span></h3></div>
    <div><table>
      <tr><td><span>Profit Margin</span></td><td>20.91%</td></tr>
    </table></div>
  </div>
</section>
</div></body></html>`

func TestSummaryRowsLimitsTables(t *testing.T) {
	s := NewScraper(DefaultSelectors())

	rows, err := s.SummaryRows(quotePage)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Previous Close|132.05",
		"Open|133.52",
		"Market Cap|2.228T",
		"Earnings Date|Jan 27, 2021|-|Feb 01, 2021",
	}, rows)
}

func TestStatisticsRowsFiltersByTitle(t *testing.T) {
	s := NewScraper(DefaultSelectors())

	rows, err := s.StatisticsRows(statisticsPage, SummaryStatisticsTitles)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Beta (5Y Monthly)|1.27",
		"52-Week Change|3|76.20%",
	}, rows)

	rows, err = s.StatisticsRows(statisticsPage, TmpStatisticsTitles)
	require.NoError(t, err)
	assert.Equal(t, []string{"Profit Margin|20.91%"}, rows)
}

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Currency in EUR. All numbers in thousands", "EUR"},
		{"All numbers in thousands", "USD"},
		{"", "USD"},
		{"Fiscal year ends in Sep. Currency in USD", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseCurrency(tt.input), tt.input)
	}
}
