package book

type CreateBookReq struct {
	Title          string `json:"title" validate:"required"`
	Author         string `json:"author" validate:"required"`
	ISBN           string `json:"isbn" validate:"required"`
	Publisher      string `json:"publisher"`
	Category       string `json:"category"`
	TotalCopies    int    `json:"total_copies" validate:"gte=0"`
	BookType       string `json:"book_type" validate:"omitempty,oneof=PHYSICAL DIGITAL"`
	LoanPeriodDays int    `json:"loan_period_days" validate:"omitempty,gt=0"`
	IsReference    bool   `json:"is_reference"`
}

type UpdateBookReq struct {
	Title          string `json:"title" validate:"required"`
	Author         string `json:"author" validate:"required"`
	Publisher      string `json:"publisher"`
	Category       string `json:"category"`
	LoanPeriodDays int    `json:"loan_period_days" validate:"omitempty,gt=0"`
	IsReference    bool   `json:"is_reference"`
}

type AddCopiesReq struct {
	Count int `json:"count" validate:"required,gt=0"`
}
