package api

import (
	"context"
	"fmt"
	"net/http"
)

const (
	apiJobsPath   = "/api/jobs/"
	apiMyJobsPath = "/api/my-jobs/"
)

// Feed returns the candidate jobs for the current jobseeker in backend order.
func (c *Client) Feed(ctx context.Context) ([]*Job, error) {
	var jobs []*Job
	if err := c.list(ctx, apiJobsPath, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Decide posts a like or dislike for a job.
func (c *Client) Decide(ctx context.Context, jobID int, action Action) (*LikeResult, error) {
	path := fmt.Sprintf("%s%d/like/", apiJobsPath, jobID)

	req, err := jsonRequest(http.MethodPost, path, map[string]Action{"action": action}, true)
	if err != nil {
		return nil, err
	}

	var result LikeResult
	if err := c.do(ctx, req, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// MyJobs returns the recruiter's own postings.
func (c *Client) MyJobs(ctx context.Context) ([]*Job, error) {
	var jobs []*Job
	if err := c.list(ctx, apiMyJobsPath, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (c *Client) CreateJob(ctx context.Context, payload *JobPayload) (*Job, error) {
	req, err := jsonRequest(http.MethodPost, apiMyJobsPath, payload, true)
	if err != nil {
		return nil, err
	}

	var job Job
	if err := c.do(ctx, req, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

func (c *Client) UpdateJob(ctx context.Context, jobID int, payload *JobPayload) (*Job, error) {
	req, err := jsonRequest(http.MethodPut, jobPath(jobID), payload, true)
	if err != nil {
		return nil, err
	}

	var job Job
	if err := c.do(ctx, req, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

func (c *Client) DeleteJob(ctx context.Context, jobID int) error {
	return c.do(ctx, &request{method: http.MethodDelete, path: jobPath(jobID), auth: true}, nil)
}

func jobPath(id int) string {
	return fmt.Sprintf("%s%d/", apiJobsPath, id)
}
