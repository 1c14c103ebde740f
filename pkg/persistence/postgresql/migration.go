package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create workflows table
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL DEFAULT '',
				state VARCHAR(50) NOT NULL CHECK (state IN (
					'step_1_icp', 'step_2_competitors', 'step_3_seeds', 'step_4_longtails',
					'step_5_filtering', 'step_6_clustering', 'step_7_validation',
					'step_8_subtopics', 'step_9_articles', 'completed'
				)),
				organization_id VARCHAR(255) NOT NULL,
				created_by VARCHAR(255) NOT NULL DEFAULT '',
				payload JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_organization_id ON workflows(organization_id);
			CREATE INDEX idx_workflows_state ON workflows(state);
			CREATE INDEX idx_workflows_updated_at ON workflows(updated_at);

			-- Create workflow_transitions table (append-only audit trail)
			CREATE TABLE workflow_transitions (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id),
				previous_state VARCHAR(50) NOT NULL,
				event VARCHAR(50) NOT NULL,
				next_state VARCHAR(50) NOT NULL,
				triggered_by VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_workflow_transitions_workflow_id ON workflow_transitions(workflow_id, created_at);
		`,
	}
}
