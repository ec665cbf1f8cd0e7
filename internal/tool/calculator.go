package tool

import (
	"context"
	"fmt"

	"tripkit/internal/domain"
	"tripkit/internal/expense"
)

type hotelCostArgs struct {
	PricePerNight float64 `json:"price_per_night" jsonschema:"description=Price of one night in the hotel,minimum=0"`
	TotalDays     float64 `json:"total_days" jsonschema:"description=Number of nights to stay,minimum=0"`
}

type totalExpenseArgs struct {
	Costs []float64 `json:"costs" jsonschema:"description=Individual costs to add up"`
}

type dailyBudgetArgs struct {
	TotalCost float64 `json:"total_cost" jsonschema:"description=Total trip budget"`
	Days      int     `json:"days" jsonschema:"description=Number of days the budget covers"`
}

type costExpressionArgs struct {
	Expression string         `json:"expression" jsonschema:"description=Arithmetic expression such as price * nights + fees"`
	Params     map[string]any `json:"params,omitempty" jsonschema:"description=Values for the names used in the expression"`
}

// CalculatorCapabilities exposes the arithmetic engine.
func CalculatorCapabilities() []domain.Capability {
	return []domain.Capability{
		{
			Name:        "estimate_total_hotel_cost",
			Description: "Multiply the price per night by the number of nights.",
			InputSchema: SchemaFor(&hotelCostArgs{}),
			Invoke: func(_ context.Context, args map[string]any) (any, error) {
				price, err := ArgsNumber(args, "price_per_night")
				if err != nil {
					return nil, operandErr(err)
				}
				days, err := ArgsNumber(args, "total_days")
				if err != nil {
					return nil, operandErr(err)
				}
				return expense.Multiply(price, days)
			},
		},
		{
			Name:        "calculate_total_expense",
			Description: "Add up a list of costs.",
			InputSchema: SchemaFor(&totalExpenseArgs{}),
			Invoke: func(_ context.Context, args map[string]any) (any, error) {
				costs, err := ArgsNumbers(args, "costs")
				if err != nil {
					return nil, operandErr(err)
				}
				return expense.SumAll(costs...)
			},
		},
		{
			Name:        "calculate_daily_expense_budget",
			Description: "Divide a total cost evenly across a number of days.",
			InputSchema: SchemaFor(&dailyBudgetArgs{}),
			Invoke: func(_ context.Context, args map[string]any) (any, error) {
				total, err := ArgsNumber(args, "total_cost")
				if err != nil {
					return nil, operandErr(err)
				}
				days, err := ArgsInt(args, "days")
				if err != nil {
					return nil, operandErr(err)
				}
				return expense.AveragePerUnit(total, days)
			},
		},
		{
			Name:        "evaluate_cost_expression",
			Description: "Evaluate a cost formula with named parameters. Supports + - * / % and round, ceil, floor, min, max.",
			InputSchema: SchemaFor(&costExpressionArgs{}),
			Invoke: func(_ context.Context, args map[string]any) (any, error) {
				expr := ArgsString(args, "expression")
				if expr == "" {
					return nil, fmt.Errorf("%w: missing argument: expression", domain.ErrInvalidOperand)
				}
				params, err := ArgsObject(args, "params")
				if err != nil {
					return nil, operandErr(err)
				}
				return expense.Evaluate(expr, params)
			},
		},
	}
}

func operandErr(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrInvalidOperand, err)
}

func requestErr(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
}
