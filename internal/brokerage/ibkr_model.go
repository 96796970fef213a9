package brokerage

import "encoding/xml"

type flexRequestResponse struct {
	XMLName       xml.Name `xml:"FlexStatementResponse"`
	Timestamp     string   `xml:"timestamp,attr"`
	Status        string   `xml:"Status"`        // Success or Fail
	ReferenceCode int      `xml:"ReferenceCode"` // Code to download the requested statement
	URL           string   `xml:"Url"`           // URL to download statement
	ErrorCode     *int     `xml:"ErrorCode"`     // If error, the error code
	ErrorMessage  *string  `xml:"ErrorMessage"`  // If error, the verbose message
}

type flexQueryResponse struct {
	XMLName        xml.Name `xml:"FlexQueryResponse"`
	QueryName      string   `xml:"queryName,attr"`
	Type           string   `xml:"type,attr"`
	FlexStatements struct {
		Count         string `xml:"count,attr"`
		FlexStatement struct {
			AccountID     string `xml:"accountId,attr"`
			FromDate      string `xml:"fromDate,attr"`
			ToDate        string `xml:"toDate,attr"`
			WhenGenerated string `xml:"whenGenerated,attr"`
			EquitySummary struct {
				Record []struct {
					ReportDate string  `xml:"reportDate,attr"`
					Total      float64 `xml:"total,attr"`
				} `xml:"EquitySummaryByReportDateInBase"`
			} `xml:"EquitySummaryInBase"`
			OpenPositions struct {
				OpenPosition []struct {
					Symbol     string  `xml:"symbol,attr"`
					Position   float64 `xml:"position,attr"`
					MarkPrice  float64 `xml:"markPrice,attr"`
					Value      float64 `xml:"positionValue,attr"`
					ReportDate string  `xml:"reportDate,attr"`
				} `xml:"OpenPosition"`
			} `xml:"OpenPositions"`
			Trades struct {
				Trade []struct {
					Currency      string  `xml:"currency,attr"`
					Symbol        string  `xml:"symbol,attr"`
					Description   string  `xml:"description,attr"`
					Quantity      float64 `xml:"quantity,attr"`
					TradePrice    float64 `xml:"tradePrice,attr"`
					NetCash       float64 `xml:"netCash,attr"`
					TransactionID int64   `xml:"transactionID,attr"`
					TradeDate     string  `xml:"tradeDate,attr"`
					BuySell       string  `xml:"buySell,attr"`
				} `xml:"Trade"`
			} `xml:"Trades"`
			CashTransactions struct {
				CashTransaction []struct {
					Currency      string  `xml:"currency,attr"`
					Symbol        string  `xml:"symbol,attr"`
					Description   string  `xml:"description,attr"`
					DateTime      string  `xml:"dateTime,attr"`
					Amount        float64 `xml:"amount,attr"`
					Type          string  `xml:"type,attr"`
					TransactionID int64   `xml:"transactionID,attr"`
					ReportDate    string  `xml:"reportDate,attr"`
				} `xml:"CashTransaction"`
			} `xml:"CashTransactions"`
		} `xml:"FlexStatement"`
	} `xml:"FlexStatements"`
}
