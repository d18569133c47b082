package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	taxdomain "github.com/smallbiznis/taxtracker/internal/taxrecord/domain"
)

const taxRecordsPath = "/tax/records"

type addTaxRecordRequest struct {
	Company     string `form:"company"`
	Amount      string `form:"amount"`
	TaxRate     string `form:"tax_rate"`
	PaymentDate string `form:"payment_date"`
	Status      string `form:"status"`
	DueDate     string `form:"due_date"`
}

func (s *Server) ListTaxRecords(c *gin.Context) {
	resp, err := s.taxSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp,
		"due_dates": s.dueDates.DueDates(s.clock.Now()),
	})
}

func (s *Server) SearchTaxRecords(c *gin.Context) {
	dueDate := strings.TrimSpace(c.Query("due_date"))

	resp, err := s.taxSvc.Search(c.Request.Context(), dueDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":            resp,
		"due_dates":       s.dueDates.DueDates(s.clock.Now()),
		"search_due_date": dueDate,
	})
}

func (s *Server) AddTaxRecord(c *gin.Context) {
	var req addTaxRecordRequest
	if err := c.ShouldBind(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	_, err := s.taxSvc.Create(c.Request.Context(), taxdomain.CreateRequest{
		Company:     req.Company,
		Amount:      req.Amount,
		TaxRate:     req.TaxRate,
		PaymentDate: req.PaymentDate,
		Status:      req.Status,
		DueDate:     req.DueDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Redirect(http.StatusFound, taxRecordsPath)
}

// DeleteTaxRecord redirects whether or not the row existed. Ids that are not
// unsigned integers do not match the route and answer 404.
func (s *Server) DeleteTaxRecord(c *gin.Context) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 63)
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	if err := s.taxSvc.Delete(c.Request.Context(), int64(id)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Redirect(http.StatusFound, taxRecordsPath)
}

func (s *Server) SummarizeTaxRecords(c *gin.Context) {
	var query struct {
		DueDate string `form:"due_date"`
		TaxRate string `form:"tax_rate"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.taxSvc.Summarize(c.Request.Context(), taxdomain.SummaryRequest{
		DueDate: strings.TrimSpace(query.DueDate),
		TaxRate: strings.TrimSpace(query.TaxRate),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DumpDatabase(c *gin.Context) {
	resp, err := s.taxSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
