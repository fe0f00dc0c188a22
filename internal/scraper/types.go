package scraper

// RowDelimiter соединяет текстовые узлы строки таблицы
const RowDelimiter = "|"

// Названия блоков статистики, которые попадают в summary
var SummaryStatisticsTitles = []string{"Stock Price History", "Share Statistics"}

// Названия блоков статистики, которые попадают в tmp
var TmpStatisticsTitles = []string{
	"Fiscal Year",
	"Profitability",
	"Management Effectiveness",
	"Income Statement",
	"Balance Sheet",
	"Cash Flow Statement",
	"Dividends & Splits",
}

type Selectors struct {
	SignIn     SignInSelectors     `yaml:"signin"`
	Quote      QuoteSelectors      `yaml:"quote"`
	Statistics StatisticsSelectors `yaml:"statistics"`
	History    HistorySelectors    `yaml:"history"`
	Financials FinancialsSelectors `yaml:"financials"`
}

type SignInSelectors struct {
	Username string `yaml:"username"`
	Next     string `yaml:"next"`
	Password string `yaml:"password"`
	Submit   string `yaml:"submit"`
}

type QuoteSelectors struct {
	LookupPage  string `yaml:"lookup_page"`
	NavItems    string `yaml:"nav_items"`
	Tables      string `yaml:"tables"`
	TablesLimit int    `yaml:"tables_limit"`
}

type StatisticsSelectors struct {
	Main     string `yaml:"main"`
	Section  string `yaml:"section"`
	Download string `yaml:"download"`
}

type HistorySelectors struct {
	Dropdown   string `yaml:"dropdown"`
	MaxButton  string `yaml:"max_button"`
	FilterOpen string `yaml:"filter_open"`
	FilterItem string `yaml:"filter_item"`
	Apply      string `yaml:"apply"`
	Download   string `yaml:"download"`
}

type FinancialsSelectors struct {
	Quarterly string `yaml:"quarterly"`
	Download  string `yaml:"download"`
	Currency  string `yaml:"currency"`
}

// DefaultSelectors: разметка страниц котировок на момент написания
func DefaultSelectors() *Selectors {
	return &Selectors{
		SignIn: SignInSelectors{
			Username: "input[name='username']",
			Next:     "input[name='signin']",
			Password: "input[name='password']",
			Submit:   "button[type='submit']",
		},
		Quote: QuoteSelectors{
			LookupPage:  "section[id='lookup-page']>section>div>h2",
			NavItems:    "div[id='quote-nav']>ul>li",
			Tables:      "table",
			TablesLimit: 2,
		},
		Statistics: StatisticsSelectors{
			Main:     "#Main",
			Section:  "section[data-test='qsp-statistics']",
			Download: "section[data-test='qsp-statistics'] div>span>button",
		},
		History: HistorySelectors{
			Dropdown:   "section div[data-test='dropdown']>div",
			MaxButton:  "li>button[data-value='MAX']",
			FilterOpen: "section span>div[data-test='select-container']",
			FilterItem: "section span>div[data-test='historicalFilter-menu'] div",
			Apply:      "section>div>div>button",
			Download:   "section>div>div>span>a",
		},
		Financials: FinancialsSelectors{
			Quarterly: "section[data-test='qsp-financial']>div>div>button",
			Download:  "section[data-test='qsp-financial'] div>span>button",
			Currency:  "section[data-test='qsp-financial']>div>span>span",
		},
	}
}
