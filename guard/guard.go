/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package guard

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/sony/gobreaker"
	usererrors "github.com/suparena/userstore/errors"
	"github.com/suparena/userstore/keys"
)

// Cancellation reason codes reported by TransactWriteItems.
const (
	reasonConditionalCheckFailed = "ConditionalCheckFailed"
	reasonNone                   = "None"
)

// KeyAbsent is the predicate attached to every row of a uniqueness-enforcing
// create: the write is rejected if a row already occupies the key.
func KeyAbsent() expression.ConditionBuilder {
	return expression.AttributeNotExists(expression.Name(keys.AttrPK))
}

// KeyPresent rejects writes against a key that holds no row. Updates use it
// so that a missing profile is never silently created.
func KeyPresent() expression.ConditionBuilder {
	return expression.AttributeExists(expression.Name(keys.AttrPK))
}

// OwnedBy lets a guard row be released only by its owner. An absent row
// passes so that releasing a reservation that is already gone is a no-op.
func OwnedBy(owner string) expression.ConditionBuilder {
	return expression.Or(
		expression.AttributeNotExists(expression.Name(keys.AttrPK)),
		expression.Name(keys.AttrOwner).Equal(expression.Value(owner)),
	)
}

// AtLeast requires a numeric attribute to be >= n.
func AtLeast(field string, n int64) expression.ConditionBuilder {
	return expression.Name(field).GreaterThanEqual(expression.Value(n))
}

// Condition builds a standalone condition expression.
func Condition(cond expression.ConditionBuilder) (expression.Expression, error) {
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("failed to build condition: %w", err)
	}
	return expr, nil
}

// Classify maps a backend error onto the userstore error kinds:
// ConditionFailedError for rejected predicates, UnavailableError for
// transport, throttling and service faults. Other errors are wrapped with op
// and returned as is.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if usererrors.IsConditionFailed(err) || usererrors.IsUnavailable(err) ||
		usererrors.IsNotFound(err) || usererrors.IsValidationError(err) {
		return err
	}

	if IsConditionFailure(err) {
		return usererrors.NewConditionFailedError(op, conditionDetail(err))
	}

	var rnf *types.ResourceNotFoundException
	if IsTransient(err) || errors.As(err, &rnf) {
		return usererrors.NewUnavailableError(op, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

// IsConditionFailure reports whether err is a rejected conditional write,
// either a single-item ConditionalCheckFailedException or a cancelled
// transaction with at least one ConditionalCheckFailed reason.
func IsConditionFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			if aws.ToString(reason.Code) == reasonConditionalCheckFailed {
				return true
			}
		}
	}
	return false
}

// IsTransient determines if an error is worth retrying
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}

	var (
		pte *types.ProvisionedThroughputExceededException
		rle *types.RequestLimitExceeded
		ise *types.InternalServerError
		tce *types.TransactionCanceledException
	)
	switch {
	case errors.As(err, &pte), errors.As(err, &rle), errors.As(err, &ise):
		return true
	case errors.As(err, &tce):
		// cancelled for contention or throttling rather than a predicate
		return !IsConditionFailure(err) && transientReasons(tce)
	}

	var sendErr *smithyhttp.RequestSendError
	if errors.As(err, &sendErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceUnavailable", "RequestTimeout", "TransactionInProgressException":
			return true
		}
		return apiErr.ErrorFault() == smithy.FaultServer
	}
	return false
}

func transientReasons(tce *types.TransactionCanceledException) bool {
	for _, reason := range tce.CancellationReasons {
		switch aws.ToString(reason.Code) {
		case "TransactionConflict", "ThrottlingError", "ProvisionedThroughputExceeded":
			return true
		}
	}
	return false
}

func conditionDetail(err error) string {
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for i, reason := range tce.CancellationReasons {
			if aws.ToString(reason.Code) != reasonNone && aws.ToString(reason.Code) != "" {
				return fmt.Sprintf("transaction item %d: %s", i, aws.ToString(reason.Code))
			}
		}
	}
	return "attribute_not_exists(PK)"
}
