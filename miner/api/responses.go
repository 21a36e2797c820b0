package api

import (
	"net/http"

	"github.com/absmach/supermq"
	"github.com/openmined/mine/miner"
	"github.com/openmined/mine/pkg/storage"
	"github.com/openmined/mine/sonar"
)

var (
	_ supermq.Response = (*stateRes)(nil)
	_ supermq.Response = (*modelRes)(nil)
	_ supermq.Response = (*listModelsRes)(nil)
	_ supermq.Response = (*trainRes)(nil)
	_ supermq.Response = (*listSubmissionsRes)(nil)
)

type stateRes struct {
	State    miner.State `json:"state"`
	Operator string      `json:"operator"`
}

func (r stateRes) Code() int {
	return http.StatusOK
}

func (r stateRes) Headers() map[string]string {
	return map[string]string{}
}

func (r stateRes) Empty() bool {
	return false
}

type modelRes struct {
	sonar.Model
}

func (r modelRes) Code() int {
	return http.StatusOK
}

func (r modelRes) Headers() map[string]string {
	return map[string]string{}
}

func (r modelRes) Empty() bool {
	return false
}

type listModelsRes struct {
	Total  uint64        `json:"total"`
	Models []sonar.Model `json:"models"`
}

func (r listModelsRes) Code() int {
	return http.StatusOK
}

func (r listModelsRes) Headers() map[string]string {
	return map[string]string{}
}

func (r listModelsRes) Empty() bool {
	return false
}

type trainRes struct {
	ModelID uint64 `json:"model_id"`
	sonar.Receipt
}

func (r trainRes) Code() int {
	return http.StatusCreated
}

func (r trainRes) Headers() map[string]string {
	return map[string]string{}
}

func (r trainRes) Empty() bool {
	return false
}

type listSubmissionsRes struct {
	storage.SubmissionPage
}

func (r listSubmissionsRes) Code() int {
	return http.StatusOK
}

func (r listSubmissionsRes) Headers() map[string]string {
	return map[string]string{}
}

func (r listSubmissionsRes) Empty() bool {
	return false
}
